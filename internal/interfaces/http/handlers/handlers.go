// Package handlers holds the thin transport adapters over the protocol
// engine. Handlers parse the wire request, delegate to an application
// service and map the result or error back to the OAuth wire format; no
// protocol decisions live here.
package handlers

import (
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/ipede/authorization-server/internal/domain"
)

// tenantID resolves the tenant from the URL. Every protocol endpoint is
// mounted under /{tenant}.
func tenantID(r *http.Request) string {
	return chi.URLParam(r, "tenant")
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// clientAuthRequest collects the credentials a client presented on a token,
// introspection or revocation call: Basic header, body parameters, client
// assertion and mutual-TLS certificate.
func clientAuthRequest(r *http.Request) *domain.ClientAuthenticationRequest {
	auth := &domain.ClientAuthenticationRequest{
		ClientID:            r.PostFormValue("client_id"),
		ClientSecret:        r.PostFormValue("client_secret"),
		ClientAssertion:     r.PostFormValue("client_assertion"),
		ClientAssertionType: r.PostFormValue("client_assertion_type"),
		ClientCertificate:   clientCertificate(r),
	}
	if id, secret, ok := r.BasicAuth(); ok {
		auth.BasicClientID = id
		auth.BasicClientSecret = secret
	}
	return auth
}

// clientCertificate extracts the mutual-TLS client certificate, either from
// the TLS connection or, behind a terminating proxy, from the
// X-Client-Cert header carrying the URL-encoded PEM.
func clientCertificate(r *http.Request) string {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return string(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: r.TLS.PeerCertificates[0].Raw,
		}))
	}
	if header := r.Header.Get("X-Client-Cert"); header != "" {
		if decoded, err := url.QueryUnescape(header); err == nil {
			return decoded
		}
	}
	return ""
}
