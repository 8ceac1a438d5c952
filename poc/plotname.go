package poc

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/NebulousLabs/errors"
)

// ErrBadPlotName is returned by ParsePlotName when a filename does not
// match the required <account_id>_<start_nonce>_<nonces> pattern.
var ErrBadPlotName = errors.New("plot file has wrong format")

// ParsePlotName parses a plot filename into its Meta fields (§4.1, §6).
// Name is stored on the returned Meta unchanged so that FileName always
// round-trips.
func ParsePlotName(name string) (Meta, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return Meta{}, ErrBadPlotName
	}
	accountID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Meta{}, errors.AddContext(ErrBadPlotName, err.Error())
	}
	startNonce, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Meta{}, errors.AddContext(ErrBadPlotName, err.Error())
	}
	nonces, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Meta{}, errors.AddContext(ErrBadPlotName, err.Error())
	}
	return Meta{
		AccountID:  accountID,
		StartNonce: startNonce,
		Nonces:     nonces,
		Name:       name,
	}, nil
}

// FileName re-emits the canonical <account_id>_<start_nonce>_<nonces>
// filename for m, independent of whatever Name it was parsed from.
func (m Meta) FileName() string {
	return fmt.Sprintf("%d_%d_%d", m.AccountID, m.StartNonce, m.Nonces)
}
