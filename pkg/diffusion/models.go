package diffusion

// Txt2ImgRequest is the JSON body of POST /sdapi/v1/txt2img
type Txt2ImgRequest struct {
	Prompt           string                 `json:"prompt"`
	NegativePrompt   string                 `json:"negative_prompt,omitempty"`
	Width            int                    `json:"width"`
	Height           int                    `json:"height"`
	Steps            int                    `json:"steps,omitempty"`
	CFGScale         float64                `json:"cfg_scale,omitempty"`
	SamplerName      string                 `json:"sampler_name,omitempty"`
	Seed             int64                  `json:"seed"`
	BatchSize        int                    `json:"batch_size"`
	NIter            int                    `json:"n_iter"`
	OverrideSettings map[string]interface{} `json:"override_settings,omitempty"`
}

// Txt2ImgResponse is the JSON body returned by txt2img
type Txt2ImgResponse struct {
	// Images holds base64 encoded PNGs
	Images []string `json:"images"`
	// Info is a JSON document encoded as a string
	Info string `json:"info"`
}

// APIError is the body the server returns on failures
type APIError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Errors string `json:"errors"`
}

// Model describes one checkpoint known to the server
type Model struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Hash      string `json:"hash"`
	Filename  string `json:"filename"`
}
