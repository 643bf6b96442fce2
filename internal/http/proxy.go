package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/sidesa/desa-admin/internal/ports"
)

// NewAPIProxy forwards /api/ requests to the upstream REST API with the stored operator
// token as bearer credential. Gateway cookies and the CSRF header stay behind. Requests are
// forwarded once; upstream failures answer 502.
func NewAPIProxy(upstream *url.URL, tokens ports.TokenStore, logger *slog.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del(DefaultCSRFHeaderName)

			token, err := tokens.Get(pr.In.Context())
			switch {
			case err == nil:
				pr.Out.Header.Set("Authorization", "Bearer "+token)
			case !errors.Is(err, ports.ErrNoToken):
				logger.WarnContext(pr.In.Context(), "read token for proxy", "error", err)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
			WriteError(w, ErrorParams{
				Code:    http.StatusBadGateway,
				ErrCode: "upstream_unavailable",
				Err:     errors.New("upstream API is unavailable"),
			})
		},
	}
}
