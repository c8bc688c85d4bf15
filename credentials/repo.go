package credentials

import "context"

// Durable keys persisted by every Repo implementation. The access and
// refresh tokens are stored separately so that a refresh rotation can be
// observed key-by-key by other processes sharing the repo.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Repo is the durable key-value storage behind the credential store.
// Implementations: filerepo (single-user sessions), redisrepo (multi-process
// deployments sharing one API session), repofake (tests).
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
