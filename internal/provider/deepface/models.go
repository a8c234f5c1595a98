package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img              string `json:"img"`              // base64 encoded image or data URL
	ModelName        string `json:"model_name"`       // "Facenet", "Facenet512", "VGG-Face", ...
	DetectorBackend  string `json:"detector_backend"` // "ssd", "retinaface", "mtcnn", ...
	EnforceDetection bool   `json:"enforce_detection"`
	Align            bool   `json:"align"`
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	W        int    `json:"w"`
	H        int    `json:"h"`
	LeftEye  *[2]int `json:"left_eye,omitempty"`
	RightEye *[2]int `json:"right_eye,omitempty"`
}
