package report

import (
	"bytes"
	"fmt"

	"github.com/prometheus/common/expfmt"
)

// Export renders the toolshim metrics in the Prometheus text format.
func Export() (string, error) {
	families, err := Registry.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
