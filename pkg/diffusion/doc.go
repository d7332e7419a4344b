// Package diffusion is a client for text-to-image servers that speak the
// AUTOMATIC1111 web UI API.
//
// Only txt2img and the model listing are used. Each call returns the first
// generated image as PNG bytes. Failures are reported as *errors.Error with
// a type derived from the HTTP status, so callers can retry network, rate
// limit and server errors and give up on everything else.
//
//	client := diffusion.NewClient(cfg.Diffusion, log)
//	png, err := client.Generate(ctx, diffusion.RequestFromConfig(cfg.Diffusion, prompt))
package diffusion
