package dataset

import (
	"fmt"
	"path"
	"strings"
)

type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

var AllSplits = []Split{SplitTrain, SplitVal, SplitTest}

func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case SplitTrain, SplitVal, SplitTest:
		return Split(s), nil
	}
	return "", fmt.Errorf("%w '%v' (must be one of train, val, test)", ErrInvalidSplit, s)
}

// Name of the file that lists the videos in the split
func (s Split) filename() string {
	return "metadata/" + string(s) + "_split.txt"
}

// VideoID is the name of a video, eg "crash_001"
type VideoID string

// CrashPrefix marks the IDs of videos that are stored in the crash directories
const CrashPrefix = "crash_"

// Category decides where a video and its annotation are stored.
type Category int

const (
	CategoryNormal Category = iota
	CategoryCrash
)

// CategoryOf derives the storage category from the ID's prefix
func CategoryOf(id VideoID) Category {
	if strings.HasPrefix(string(id), CrashPrefix) {
		return CategoryCrash
	}
	return CategoryNormal
}

// Directory name of the category, inside 'videos' and 'annotations'
func (c Category) String() string {
	if c == CategoryCrash {
		return "crash"
	}
	return "normal"
}

// VideoRef is a video ID, along with the category that was derived from it when the split was loaded
type VideoRef struct {
	ID       VideoID
	Category Category
}

func NewVideoRef(id VideoID) VideoRef {
	return VideoRef{
		ID:       id,
		Category: CategoryOf(id),
	}
}

// Storage name of the video file
func (r VideoRef) VideoName(ext string) string {
	return path.Join("videos", r.Category.String(), string(r.ID)+"."+ext)
}

// Storage name of the annotation file
func (r VideoRef) AnnotationName() string {
	return path.Join("annotations", r.Category.String(), string(r.ID)+".json")
}
