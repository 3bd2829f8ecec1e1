package catalog

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE video(
			split TEXT NOT NULL,
			id TEXT NOT NULL,
			position INT NOT NULL,
			category TEXT NOT NULL,
			crash_type TEXT,
			crash_frame INT,
			risk_level TEXT,
			num_annotated_frames INT NOT NULL,
			num_vehicles INT NOT NULL,
			num_pedestrians INT NOT NULL,
			PRIMARY KEY (split, id)
		) WITHOUT ROWID;

		CREATE INDEX idx_video_category ON video (category);
		CREATE INDEX idx_video_risk_level ON video (risk_level);
	`))

	return migs
}
