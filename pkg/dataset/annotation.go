package dataset

import (
	"encoding/json"
	"fmt"
)

const (
	AnnotationCategoryCrash  = "crash"
	AnnotationCategoryNormal = "normal"
)

// BBox is [x, y, width, height] in pixels, with the origin at the top-left of the frame
type BBox [4]float64

func (b BBox) X() float64      { return b[0] }
func (b BBox) Y() float64      { return b[1] }
func (b BBox) Width() float64  { return b[2] }
func (b BBox) Height() float64 { return b[3] }

func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox must have 4 elements [x,y,w,h], but has %v", len(v))
	}
	copy(b[:], v)
	return nil
}

type Vehicle struct {
	BBox     BBox   `json:"bbox"`
	Type     string `json:"type"`
	Behavior string `json:"behavior,omitempty"` // normal, aggressive, erratic, stopping, turning
}

type Pedestrian struct {
	BBox   BBox   `json:"bbox"`
	Action string `json:"action,omitempty"`
}

// FrameAnnotation is the set of objects labelled in a single frame.
// RiskLevel is not part of the per-video schema, but some frames carry their own.
type FrameAnnotation struct {
	FrameID     int          `json:"frame_id"`
	Vehicles    []Vehicle    `json:"vehicles,omitempty"`
	Pedestrians []Pedestrian `json:"pedestrians,omitempty"`
	RiskLevel   *string      `json:"risk_level,omitempty"`
}

// Annotation is the content of annotations/{crash,normal}/<id>.json
// Optional fields are nil when absent.
type Annotation struct {
	Category   string            `json:"category"` // "crash" or "normal"
	CrashType  *string           `json:"crash_type,omitempty"`
	CrashFrame *int              `json:"crash_frame,omitempty"`
	RiskLevel  *string           `json:"risk_level,omitempty"`
	Frames     []FrameAnnotation `json:"frames,omitempty"`
}

// ParseAnnotation decodes an annotation file.
// The only validation is that 'category' is present, and that every frame has a frame_id.
func ParseAnnotation(raw []byte) (*Annotation, error) {
	var a struct {
		Annotation
		Category *string `json:"category"`
		Frames   []struct {
			FrameAnnotation
			FrameID *int `json:"frame_id"`
		} `json:"frames"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	if a.Category == nil {
		return nil, fmt.Errorf("missing 'category'")
	}
	anno := a.Annotation
	anno.Category = *a.Category
	anno.Frames = nil
	for i, f := range a.Frames {
		if f.FrameID == nil {
			return nil, fmt.Errorf("frame %v is missing 'frame_id'", i)
		}
		fa := f.FrameAnnotation
		fa.FrameID = *f.FrameID
		anno.Frames = append(anno.Frames, fa)
	}
	return &anno, nil
}

// IsCrash returns true if the category is "crash"
func (a *Annotation) IsCrash() bool {
	return a.Category == AnnotationCategoryCrash
}

// FindFrame returns the first frame with the given ID, or nil
func (a *Annotation) FindFrame(frameID int) *FrameAnnotation {
	for i := range a.Frames {
		if a.Frames[i].FrameID == frameID {
			return &a.Frames[i]
		}
	}
	return nil
}

// Clone returns a deep copy
func (a *Annotation) Clone() *Annotation {
	c := &Annotation{
		Category:   a.Category,
		CrashType:  clonePtr(a.CrashType),
		CrashFrame: clonePtr(a.CrashFrame),
		RiskLevel:  clonePtr(a.RiskLevel),
	}
	if a.Frames != nil {
		c.Frames = make([]FrameAnnotation, len(a.Frames))
		for i := range a.Frames {
			c.Frames[i] = *a.Frames[i].Clone()
		}
	}
	return c
}

func (f *FrameAnnotation) Clone() *FrameAnnotation {
	c := &FrameAnnotation{
		FrameID:   f.FrameID,
		RiskLevel: clonePtr(f.RiskLevel),
	}
	if f.Vehicles != nil {
		c.Vehicles = append([]Vehicle{}, f.Vehicles...)
	}
	if f.Pedestrians != nil {
		c.Pedestrians = append([]Pedestrian{}, f.Pedestrians...)
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
