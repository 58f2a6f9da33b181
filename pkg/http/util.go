package http

import (
	xutil "ShadowTrade/pkg/util"
)

// ParseBoolDefault parses "true"/"1"/"false"/"0" or returns def.
func ParseBoolDefault(s string, def bool) bool { return xutil.ParseBoolDefault(s, def) }
