package diffusion

import "strings"

const (
	// Txt2ImgEndpoint generates images from a text prompt
	Txt2ImgEndpoint = "/sdapi/v1/txt2img"

	// ModelsEndpoint lists the available checkpoints
	ModelsEndpoint = "/sdapi/v1/sd-models"
)

func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + endpoint
}
