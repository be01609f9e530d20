package planner

import "github.com/kesler/mediabox/internal/hdr"

// tonemapChain is the zscale+tonemap pipeline that converts an HDR source to
// SDR, appended to the video filter leg whenever HDR is detected. It forces
// software encoding: hardware encoder paths don't support zscale.
const tonemapChain = "zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709," +
	"tonemap=tonemap=hable:desat=0," +
	"zscale=t=bt709:m=bt709:r=tv,format=yuv420p"

// buildVideoFilters assembles the video filter leg: the HDR tonemap chain
// when the source is HDR, with the downscale appended after it so scaling
// happens on the tone-mapped SDR frames.
func buildVideoFilters(width, height int, downgradeResolution bool, hdrInfo hdr.Info) []string {
	var filters []string

	if hdrInfo.IsHDR {
		filters = append(filters, tonemapChain)
	}

	if downgradeResolution {
		if height > 1080 {
			filters = append(filters, "scale=-2:1080")
		} else if width > 1920 {
			filters = append(filters, "scale=1920:-2")
		}
	}

	return filters
}
