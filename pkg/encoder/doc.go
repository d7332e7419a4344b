// Package encoder assembles numbered frames into an H.264 video with ffmpeg.
//
// The argument list is fixed apart from values taken from configuration:
//
//	ffmpeg -y -framerate 30 -i <dir>/frame_%05d.png -c:v libx264 \
//	    -pix_fmt yuv420p -vf scale=1080:1920 -crf 20 <output>
//
// Processes are started through the Runner interface so tests can replace
// ffmpeg with a fake.
package encoder
