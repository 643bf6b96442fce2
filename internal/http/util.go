package httpx

import (
	"fmt"
	"net/http"
	"strconv"
)

// parseIntQuery reads an integer query parameter, returning def when it is absent.
func parseIntQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
