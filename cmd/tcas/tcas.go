package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/tcas/pkg/catalog"
	"github.com/cyclopcam/tcas/pkg/config"
	"github.com/cyclopcam/tcas/pkg/dataset"
	"github.com/cyclopcam/tcas/pkg/videox/opencv"
	"github.com/cyclopcam/tcas/pkg/vis"
)

func check(err error) {
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("tcas", "Dashcam crash anticipation dataset tool")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file path"})
	root := parser.String("r", "root", &argparse.Options{Help: "Dataset root directory (instead of a config file)"})
	splitName := parser.String("s", "split", &argparse.Options{Help: "Dataset split (train, val, test)", Default: "train"})

	infoCmd := parser.NewCommand("info", "Show a summary of the split, and of one of its videos")
	infoIndex := infoCmd.Int("i", "index", &argparse.Options{Help: "Index of the video in the split", Default: 0})

	frameCmd := parser.NewCommand("frame", "Show the annotation of one frame, and the time to the accident")
	frameVideo := frameCmd.String("v", "video", &argparse.Options{Help: "Video ID", Required: true})
	frameID := frameCmd.Int("f", "frame", &argparse.Options{Help: "Frame number", Required: true})

	visCmd := parser.NewCommand("vis", "Draw the annotation of one frame over the video frame")
	visVideo := visCmd.String("v", "video", &argparse.Options{Help: "Video ID", Required: true})
	visFrame := visCmd.Int("f", "frame", &argparse.Options{Help: "Frame number. Used both as the 0-based index of the decoded frame, and as the annotation frame_id", Required: true})
	visOutput := visCmd.String("o", "output", &argparse.Options{Help: "Output PNG file. If omitted, the result is shown in a window"})

	catalogCmd := parser.NewCommand("catalog", "Build or query the SQLite catalog of annotations")
	catalogBuild := catalogCmd.Flag("", "build", &argparse.Options{Help: "Rebuild the catalog from all splits", Default: false})
	catalogCategory := catalogCmd.String("", "category", &argparse.Options{Help: "Only list videos of this category (crash or normal)"})
	catalogRisk := catalogCmd.String("", "risk", &argparse.Options{Help: "Only list videos of this risk level"})
	catalogFile := catalogCmd.String("", "db", &argparse.Options{Help: "Catalog file. Overrides the config file"})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	log, err := logs.NewLog()
	check(err)

	var cfg *config.Config
	if *root != "" {
		cfg = config.ForDirectory(*root)
	} else {
		cfg, err = config.Load(*configFile)
		check(err)
	}

	split, err := dataset.ParseSplit(*splitName)
	check(err)

	store, cache, err := cfg.OpenStorage(log)
	check(err)
	options := cfg.DatasetOptions(cache)
	options.OpenDecoder = opencv.Open

	openSplit := func(split dataset.Split) *dataset.Dataset {
		ds, err := dataset.New(log, store, split, options)
		check(err)
		return ds
	}

	switch {
	case infoCmd.Happened():
		showInfo(openSplit(split), *infoIndex)
	case frameCmd.Happened():
		showFrame(openSplit(split), dataset.VideoID(*frameVideo), *frameID, cfg.FPS)
	case visCmd.Happened():
		visualize(openSplit(split), dataset.VideoID(*visVideo), *visFrame, *visOutput)
	case catalogCmd.Happened():
		dbFile := *catalogFile
		if dbFile == "" {
			dbFile = cfg.Catalog
		}
		if dbFile == "" {
			check(fmt.Errorf("No catalog file specified"))
		}
		cat, err := catalog.Open(log, dbFile)
		check(err)
		defer cat.Close()
		if *catalogBuild {
			for _, s := range dataset.AllSplits {
				ds, err := dataset.New(log, store, s, options)
				if err != nil {
					log.Warnf("Skipping split %v: %v", s, err)
					continue
				}
				check(cat.Add(ds))
			}
		}
		listCatalog(cat, catalog.Filter{Split: split, Category: *catalogCategory, RiskLevel: *catalogRisk})
	}
}

func showInfo(ds *dataset.Dataset, index int) {
	fmt.Printf("Split %v: %v videos\n", ds.Split, ds.Len())
	if stats, err := ds.Statistics(); err == nil {
		s := dataset.ParseStatistics(stats)
		fmt.Printf("Dataset: %v videos, %v frames\n", s.TotalVideos, s.TotalFrames)
	} else {
		fmt.Printf("No statistics: %v\n", err)
	}
	if ds.Len() == 0 {
		return
	}
	sample, err := ds.Get(index)
	check(err)
	fmt.Printf("Video %v (%v): %v frames, %v annotated frames\n", sample.ID, sample.Category, len(sample.Frames), len(sample.Annotation.Frames))
	if len(sample.Frames) != 0 {
		fmt.Printf("Frame size: %v x %v\n", sample.Frames[0].Width, sample.Frames[0].Height)
	}
	if sample.Annotation.CrashType != nil {
		fmt.Printf("Crash type: %v\n", *sample.Annotation.CrashType)
	}
	if sample.Annotation.CrashFrame != nil {
		fmt.Printf("Crash frame: %v\n", *sample.Annotation.CrashFrame)
	}
}

func showFrame(ds *dataset.Dataset, id dataset.VideoID, frameID, fps int) {
	fa, err := ds.FrameAnnotation(id, frameID)
	check(err)
	if fa == nil {
		fmt.Printf("Frame %v of %v is not annotated\n", frameID, id)
	} else {
		fmt.Printf("Frame %v of %v: %v vehicles, %v pedestrians, %v\n", frameID, id, len(fa.Vehicles), len(fa.Pedestrians), vis.RiskBanner(fa.RiskLevel))
		for _, v := range fa.Vehicles {
			fmt.Printf("  %-30v %v\n", vis.VehicleLabel(&v), v.BBox)
		}
		for _, p := range fa.Pedestrians {
			fmt.Printf("  %-30v %v\n", vis.PedestrianLabel(&p), p.BBox)
		}
	}
	tta, err := ds.TimeToAccident(id, frameID, fps)
	if err == nil {
		fmt.Printf("Time to accident: %.2f seconds\n", tta)
	} else {
		fmt.Printf("Time to accident: %v\n", err)
	}
}

func visualize(ds *dataset.Dataset, id dataset.VideoID, frameID int, output string) {
	frames, err := ds.LoadVideoFrames(id)
	check(err)
	if frameID < 0 || frameID >= len(frames) {
		check(fmt.Errorf("%w: frame %v of %v (%v frames)", dataset.ErrIndexOutOfRange, frameID, id, len(frames)))
	}
	anno, err := ds.LoadAnnotation(id)
	check(err)
	// The banner shows the frame's own risk level, not the video's
	fa := anno.FindFrame(frameID)
	if output != "" {
		check(vis.Visualize(frames[frameID], fa, output, nil))
		abs, _ := filepath.Abs(output)
		fmt.Printf("Saved %v\n", abs)
	} else {
		check(vis.Visualize(frames[frameID], fa, "", &opencv.WindowPresenter{Title: string(id)}))
	}
}

func listCatalog(cat *catalog.Catalog, filter catalog.Filter) {
	videos, err := cat.Videos(filter)
	check(err)
	for _, v := range videos {
		risk := "-"
		if v.RiskLevel != nil {
			risk = *v.RiskLevel
		}
		fmt.Printf("%-6v %-20v %-7v %-8v %4v frames %4v vehicles %4v pedestrians\n", v.Split, v.ID, v.Category, risk, v.NumAnnotatedFrames, v.NumVehicles, v.NumPedestrians)
	}
	counts, err := cat.CountByCategory(filter.Split)
	check(err)
	fmt.Printf("crash: %v, normal: %v\n", counts["crash"], counts["normal"])
}
