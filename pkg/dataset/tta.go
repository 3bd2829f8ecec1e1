package dataset

import "fmt"

// TimeToAccident returns the number of seconds from currentFrame until crashFrame.
// The result is negative if currentFrame is after the crash.
// fps must be positive, otherwise ErrInvalidFPS is returned.
func TimeToAccident(crashFrame, currentFrame, fps int) (float64, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFPS, fps)
	}
	return float64(crashFrame-currentFrame) / float64(fps), nil
}

// TimeToAccident returns the time to accident of a frame of the given video.
// Returns ErrNoCrashFrame if the video's annotation has no crash frame.
func (d *Dataset) TimeToAccident(id VideoID, currentFrame, fps int) (float64, error) {
	crashFrame, err := d.CrashFrame(id)
	if err != nil {
		return 0, err
	}
	if crashFrame == nil {
		return 0, fmt.Errorf("%w: %v", ErrNoCrashFrame, id)
	}
	return TimeToAccident(*crashFrame, currentFrame, fps)
}
