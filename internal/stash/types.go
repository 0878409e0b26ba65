package stash

// TagRef is a tag as embedded in scene and marker payloads.
type TagRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Tag struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Parents []TagRef `json:"parents"`
}

type SceneFile struct {
	Path      string  `json:"path"`
	Duration  float64 `json:"duration"`
	FrameRate float64 `json:"frame_rate"`
}

type Scene struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Files []SceneFile `json:"files"`
	Tags  []TagRef    `json:"tags"`
}

// PrimaryFile returns the first file of the scene, or a zero value.
func (s *Scene) PrimaryFile() SceneFile {
	if s == nil || len(s.Files) == 0 {
		return SceneFile{}
	}
	return s.Files[0]
}

type SceneRef struct {
	ID string `json:"id"`
}

type Marker struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Seconds    float64  `json:"seconds"`
	EndSeconds *float64 `json:"end_seconds"`
	PrimaryTag TagRef   `json:"primary_tag"`
	Tags       []TagRef `json:"tags"`
	Scene      SceneRef `json:"scene"`
}

// MarkerInput carries the writable fields of a scene marker. ID is ignored
// on create.
type MarkerInput struct {
	ID           string   `json:"id,omitempty"`
	SceneID      string   `json:"scene_id"`
	Title        string   `json:"title"`
	Seconds      float64  `json:"seconds"`
	EndSeconds   *float64 `json:"end_seconds"`
	PrimaryTagID string   `json:"primary_tag_id"`
	TagIDs       []string `json:"tag_ids"`
}
