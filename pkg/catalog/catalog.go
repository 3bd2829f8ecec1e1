// Package catalog keeps a SQLite summary of the annotations of a dataset,
// so that videos can be selected by category or risk level without reading
// every annotation file.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/dataset"
	"gorm.io/gorm"
)

// Video is one row of the catalog. A video that appears in two splits has two rows.
type Video struct {
	Split              string  `gorm:"primaryKey" json:"split"`
	ID                 string  `gorm:"primaryKey" json:"id"`
	Position           int     `json:"position"` // Index of the video in the split file
	Category           string  `json:"category"`
	CrashType          *string `json:"crashType"`
	CrashFrame         *int    `json:"crashFrame"`
	RiskLevel          *string `json:"riskLevel"`
	NumAnnotatedFrames int     `json:"numAnnotatedFrames"`
	NumVehicles        int     `json:"numVehicles"`    // Sum over all annotated frames
	NumPedestrians     int     `json:"numPedestrians"` // Sum over all annotated frames
}

func (Video) TableName() string {
	return "video"
}

type Catalog struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create a catalog
func Open(log logs.Log, dbFilename string) (*Catalog, error) {
	log = logs.NewPrefixLogger(log, "Catalog")
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	log.Infof("Opening catalog at '%v'", dbFilename)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open catalog %v: %w", dbFilename, err)
	}
	return &Catalog{
		Log: log,
		DB:  db,
	}, nil
}

func (c *Catalog) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MakeVideo summarizes an annotation
func MakeVideo(split dataset.Split, position int, id dataset.VideoID, anno *dataset.Annotation) *Video {
	v := &Video{
		Split:              string(split),
		ID:                 string(id),
		Position:           position,
		Category:           anno.Category,
		CrashType:          anno.CrashType,
		CrashFrame:         anno.CrashFrame,
		RiskLevel:          anno.RiskLevel,
		NumAnnotatedFrames: len(anno.Frames),
	}
	for _, f := range anno.Frames {
		v.NumVehicles += len(f.Vehicles)
		v.NumPedestrians += len(f.Pedestrians)
	}
	return v
}

// Add replaces the catalog's content for the dataset's split with the dataset's annotations.
// Videos are not decoded. If any annotation fails to load, the catalog is left unchanged.
func (c *Catalog) Add(ds *dataset.Dataset) error {
	videos := []*Video{}
	for i, id := range ds.IDs() {
		anno, err := ds.LoadAnnotation(id)
		if err != nil {
			return err
		}
		videos = append(videos, MakeVideo(ds.Split, i, id, anno))
	}
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("split = ?", string(ds.Split)).Delete(&Video{}).Error; err != nil {
			return err
		}
		if len(videos) == 0 {
			return nil
		}
		return tx.CreateInBatches(videos, 100).Error
	})
	if err != nil {
		return err
	}
	c.Log.Infof("Added %v videos of split %v", len(videos), ds.Split)
	return nil
}

// Filter selects videos out of the catalog. Empty fields match everything.
type Filter struct {
	Split     dataset.Split
	Category  string // "crash" or "normal"
	RiskLevel string
}

// Videos returns the videos that match the filter, ordered by split and position
func (c *Catalog) Videos(f Filter) ([]Video, error) {
	q := c.DB.Model(&Video{})
	if f.Split != "" {
		q = q.Where("split = ?", string(f.Split))
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.RiskLevel != "" {
		q = q.Where("risk_level = ?", f.RiskLevel)
	}
	videos := []Video{}
	if err := q.Order("split").Order("position").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// CountByCategory returns the number of videos in each category, for the given split (or all splits if empty)
func (c *Catalog) CountByCategory(split dataset.Split) (map[string]int64, error) {
	type row struct {
		Category string
		N        int64
	}
	q := c.DB.Model(&Video{}).Select("category, count(*) AS n").Group("category")
	if split != "" {
		q = q.Where("split = ?", string(split))
	}
	rows := []row{}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, r := range rows {
		counts[r.Category] = r.N
	}
	return counts, nil
}
