// Package export writes the approved markers of a scene as an edit
// decision list for NLEs such as Premiere and Resolve.
package export

// Request asks for an EDL of one scene.
type Request struct {
	ProjectName string `json:"project_name"`
	OutputDir   string `json:"output_dir"`
	// FrameRate overrides the scene's frame rate when positive.
	FrameRate float64 `json:"frame_rate,omitempty"`
	// Lanes restricts the export to these lane names.
	Lanes []string `json:"lanes,omitempty"`
}

// Clip is one EDL event cut from a marker.
type Clip struct {
	MarkerID  string
	ClipName  string
	MediaPath string
	Start     float64
	End       float64
}

type Response struct {
	Status     string   `json:"status"`
	Format     string   `json:"format"`
	OutputPath string   `json:"output_path"`
	ClipCount  int      `json:"clip_count"`
	Skipped    []string `json:"skipped"`
}
