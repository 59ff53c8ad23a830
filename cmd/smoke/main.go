// Command smoke checks a running plaza-api: HTTP health and readiness, gRPC
// health and, when PLAZA_JWT_SECRET is set, an authenticated session round
// trip for a throwaway identity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"plaza.social/internal/auth"
	"plaza.social/internal/grpcapi"
	"plaza.social/internal/obs"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	log := obs.Logger()
	base := env("PLAZA_SMOKE_URL", "http://localhost:8080")
	grpcAddr := env("PLAZA_SMOKE_GRPC_ADDR", "localhost:9090")

	ctx, cancel := grpcapi.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/healthz", "/readyz"} {
		if err := expect(ctx, client, http.MethodGet, base+path, "", http.StatusOK, nil); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("smoke failed")
		}
	}

	hc, err := grpcapi.Dial(grpcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", grpcAddr).Msg("dial grpc")
	}
	defer hc.Close()
	serving, err := hc.Serving(ctx, grpcapi.ServiceName)
	if err != nil || !serving {
		log.Fatal().Err(err).Bool("serving", serving).Msg("grpc health")
	}

	if secret := os.Getenv("PLAZA_JWT_SECRET"); secret != "" {
		verifier, err := auth.NewTokenVerifier(secret, auth.WithIssuer(env("PLAZA_JWT_ISSUER", auth.DefaultIssuer)))
		if err != nil {
			log.Fatal().Err(err).Msg("token verifier")
		}
		subject := "smoke-" + uuid.NewString()
		token, err := verifier.Sign(subject, subject+"@smoke.invalid", time.Minute)
		if err != nil {
			log.Fatal().Err(err).Msg("sign token")
		}
		var st struct {
			Role        string   `json:"role"`
			Permissions []string `json:"permissions"`
		}
		if err := expect(ctx, client, http.MethodGet, base+"/v1/session", token, http.StatusOK, &st); err != nil {
			log.Fatal().Err(err).Msg("session")
		}
		if st.Role != auth.RoleNormalUser.String() {
			log.Fatal().Str("role", st.Role).Msg("new identity must bootstrap as normal_user")
		}
		if err := expect(ctx, client, http.MethodGet, base+"/v1/reports", token, http.StatusForbidden, nil); err != nil {
			log.Fatal().Err(err).Msg("permission gate")
		}
		if err := expect(ctx, client, http.MethodDelete, base+"/v1/session", token, http.StatusNoContent, nil); err != nil {
			log.Fatal().Err(err).Msg("sign out")
		}
	}

	fmt.Printf("plaza-api smoke test passed: %s\n", base)
}

func expect(ctx context.Context, c *http.Client, method, url, token string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: got %d, want %d", method, url, resp.StatusCode, want)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
