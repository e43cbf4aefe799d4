// Package fusion merges the connectivity label, the running tag and the classification
// entry of one machine into a single status.
package fusion

import (
	"strings"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
)

// Input is everything known about one machine after the acquisition stages of a cycle.
type Input struct {
	Infra          string
	Tag            *bool
	Classification *models.Classification
}

// Result is the fused, not yet smoothed, status of a machine.
type Result struct {
	Status models.Status
	Detail string
	Color  string
}

// Label returns the display label of the fused status.
func (r Result) Label() string {
	return models.StatusLabel(r.Status, r.Detail)
}

// DetailPortFailure is shown when the host answers but the protocol port does not.
const DetailPortFailure = "failed to reach the protocol port"

// Fuse applies the fixed precedence: network, protocol port, tag value, missing tag.
// The classification only ever contributes the detail and, for stops, the color.
func Fuse(in Input) Result {
	switch {
	case in.Infra == constants.InfraNoNetwork:
		return Result{Status: models.StatusNoNetwork, Color: constants.ColorRed}

	case in.Infra == constants.InfraFailedPort:
		return Result{Status: models.StatusTagFailure, Detail: DetailPortFailure, Color: constants.ColorYellow}

	case in.Tag != nil && *in.Tag:
		return Result{Status: models.StatusProducing, Detail: meaningfulDescription(in.Classification), Color: constants.ColorGreen}

	case in.Tag != nil:
		res := Result{Status: models.StatusStopped, Color: constants.ColorGray}
		if in.Classification != nil {
			res.Detail = strings.TrimSpace(in.Classification.Description)
			if in.Classification.Color != "" {
				res.Color = in.Classification.Color
			}
		}
		return res

	default:
		return Result{Status: models.StatusReadError, Color: constants.ColorOrange}
	}
}

// meaningfulDescription drops the placeholders the feed sends for unclassified machines.
func meaningfulDescription(c *models.Classification) string {
	if c == nil {
		return ""
	}
	desc := strings.TrimSpace(c.Description)
	upper := strings.ToUpper(desc)
	if upper == "" || strings.Contains(upper, constants.ClassificationAwaiting) || strings.Contains(upper, constants.ClassificationUnknown) {
		return ""
	}
	return desc
}
