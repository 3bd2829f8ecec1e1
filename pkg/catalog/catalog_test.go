package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/dataset"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(name, content string) {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	write("metadata/train_split.txt", "normal_007\ncrash_001\ncrash_002\n")
	write("metadata/val_split.txt", "crash_001\n")
	write("annotations/crash/crash_001.json", `{"category": "crash", "crash_type": "t_bone", "crash_frame": 88, "risk_level": "high",
		"frames": [{"frame_id": 1, "vehicles": [{"bbox": [0,0,1,1], "type": "car"}, {"bbox": [0,0,1,1], "type": "bus"}]},
		           {"frame_id": 2, "pedestrians": [{"bbox": [0,0,1,1]}]}]}`)
	write("annotations/crash/crash_002.json", `{"category": "crash", "crash_frame": 12, "risk_level": "medium"}`)
	write("annotations/normal/normal_007.json", `{"category": "normal", "risk_level": "low"}`)
	return root
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog(t *testing.T) {
	log := logs.NewTestingLog(t)
	root := writeDataset(t)
	c := openTestCatalog(t)

	for _, split := range []dataset.Split{dataset.SplitTrain, dataset.SplitVal} {
		ds, err := dataset.Open(log, root, split, dataset.Options{})
		require.NoError(t, err)
		require.NoError(t, c.Add(ds))
	}

	all, err := c.Videos(Filter{})
	require.NoError(t, err)
	require.Equal(t, 4, len(all))

	train, err := c.Videos(Filter{Split: dataset.SplitTrain})
	require.NoError(t, err)
	require.Equal(t, 3, len(train))
	require.Equal(t, "normal_007", train[0].ID)
	require.Equal(t, "crash_001", train[1].ID)
	require.Equal(t, "crash_002", train[2].ID)

	v := train[1]
	require.Equal(t, "crash", v.Category)
	require.Equal(t, "t_bone", *v.CrashType)
	require.Equal(t, 88, *v.CrashFrame)
	require.Equal(t, "high", *v.RiskLevel)
	require.Equal(t, 2, v.NumAnnotatedFrames)
	require.Equal(t, 2, v.NumVehicles)
	require.Equal(t, 1, v.NumPedestrians)

	require.Nil(t, train[0].CrashFrame)
	require.Nil(t, train[0].CrashType)

	crashes, err := c.Videos(Filter{Split: dataset.SplitTrain, Category: dataset.AnnotationCategoryCrash})
	require.NoError(t, err)
	require.Equal(t, 2, len(crashes))

	high, err := c.Videos(Filter{RiskLevel: "high"})
	require.NoError(t, err)
	require.Equal(t, 2, len(high))
	require.Equal(t, "train", high[0].Split)
	require.Equal(t, "val", high[1].Split)

	counts, err := c.CountByCategory(dataset.SplitTrain)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"crash": 2, "normal": 1}, counts)
}

func TestCatalogReplaceSplit(t *testing.T) {
	log := logs.NewTestingLog(t)
	root := writeDataset(t)
	c := openTestCatalog(t)

	ds, err := dataset.Open(log, root, dataset.SplitTrain, dataset.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Add(ds))

	require.NoError(t, os.WriteFile(filepath.Join(root, "metadata", "train_split.txt"), []byte("crash_002\n"), 0644))
	ds, err = dataset.Open(log, root, dataset.SplitTrain, dataset.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Add(ds))

	train, err := c.Videos(Filter{Split: dataset.SplitTrain})
	require.NoError(t, err)
	require.Equal(t, 1, len(train))
	require.Equal(t, "crash_002", train[0].ID)
	require.Equal(t, 0, train[0].Position)
}

func TestCatalogMissingAnnotation(t *testing.T) {
	log := logs.NewTestingLog(t)
	root := writeDataset(t)
	c := openTestCatalog(t)

	ds, err := dataset.Open(log, root, dataset.SplitTrain, dataset.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Add(ds))

	require.NoError(t, os.Remove(filepath.Join(root, "annotations", "crash", "crash_002.json")))
	ds, err = dataset.Open(log, root, dataset.SplitTrain, dataset.Options{})
	require.NoError(t, err)
	require.ErrorIs(t, c.Add(ds), dataset.ErrNotFound)

	// The previous content is untouched
	train, err := c.Videos(Filter{Split: dataset.SplitTrain})
	require.NoError(t, err)
	require.Equal(t, 3, len(train))
}
