package export

import (
	"fmt"
	"math"
	"strings"
)

const defaultFrameRate = 30.0

// GenerateEDL renders clips as a CMX3600 list. Record times are laid end to
// end in clip order.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	fps := int(math.Round(frameRate))

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordMs := 0
	for i, clip := range clips {
		startMs, endMs := secondsToMs(clip.Start), secondsToMs(clip.End)
		durationMs := endMs - startMs

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				msToTimecode(startMs, fps), msToTimecode(endMs, fps),
				msToTimecode(recordMs, fps), msToTimecode(recordMs+durationMs, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)
		if clip.MarkerID != "" {
			lines = append(lines, fmt.Sprintf("* MARKER ID:  %s", clip.MarkerID))
		}

		recordMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, totalSeconds/60%60, totalSeconds%60, frames)
}
