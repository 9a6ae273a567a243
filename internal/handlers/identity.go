package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/boom/internal/auth"
	"github.com/jason-s-yu/boom/internal/users"
	"github.com/sirupsen/logrus"
)

const directoryTimeout = 2 * time.Second

// TokenVerifier checks an externally issued identity token.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Resolver works out who is on the other end of an upgrade request. The
// server does not authenticate; it consumes whatever identity it is given.
type Resolver struct {
	verifier  TokenVerifier
	directory users.Directory
	logger    *logrus.Logger
}

// NewResolver builds a resolver. verifier and directory may be nil.
func NewResolver(verifier TokenVerifier, directory users.Directory, logger *logrus.Logger) *Resolver {
	return &Resolver{verifier: verifier, directory: directory, logger: logger}
}

// Resolve returns the user ID and display name for r. A token that is present
// but fails verification is an error; everything else falls back to a guest.
func (res *Resolver) Resolve(r *http.Request) (auth.Identity, error) {
	var id auth.Identity
	if token := bearerToken(r); token != "" && res.verifier != nil {
		verified, err := res.verifier.Verify(token)
		if err != nil {
			return auth.Identity{}, err
		}
		id = verified
	} else {
		q := r.URL.Query()
		id.UserID = strings.TrimSpace(q.Get("userId"))
		id.Name = strings.TrimSpace(q.Get("name"))
	}

	if id.UserID == "" {
		id.UserID = uuid.NewString()
	} else if id.Name == "" && res.directory != nil {
		id.Name = res.lookup(r.Context(), id.UserID)
	}
	if id.Name == "" {
		id.Name = "Player-" + uuid.NewString()[:4]
	}
	return id, nil
}

func (res *Resolver) lookup(ctx context.Context, userID string) string {
	ctx, cancel := context.WithTimeout(ctx, directoryTimeout)
	defer cancel()
	name, err := res.directory.DisplayName(ctx, userID)
	switch {
	case err == nil:
		return name
	case errors.Is(err, users.ErrUnknownUser):
		res.logger.WithField("user", userID).Debug("user not in directory")
	default:
		res.logger.WithField("user", userID).WithError(err).Warn("directory lookup failed")
	}
	return ""
}
