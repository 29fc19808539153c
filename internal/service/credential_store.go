package service

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Claves persistidas, sensibles a mayúsculas. Se limpian juntas en logout.
const (
	credKeyAccess  = "accessToken"
	credKeyRefresh = "refreshToken"
	credKeyID      = "idToken"
)

// Credentials son los tokens de plataforma persistidos de una sesión.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
}

func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.IDToken == ""
}

// CredentialStore persiste credenciales compartidas entre componentes y
// notifica cambios hechos por otros escritores (el análogo cross-tab).
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
	Watch(ctx context.Context) <-chan struct{}
}

type memoryCredentialStore struct {
	mu       sync.Mutex
	creds    Credentials
	watchers []chan struct{}
}

func NewMemoryCredentialStore() CredentialStore {
	return &memoryCredentialStore{}
}

func (s *memoryCredentialStore) Load(_ context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

func (s *memoryCredentialStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *memoryCredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.creds = Credentials{}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *memoryCredentialStore) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	// Al cancelar el contexto el watcher se da de baja y su canal se cierra,
	// igual que la variante redis.
	go func() {
		<-ctx.Done()
		s.removeWatcher(ch)
		close(ch)
	}()
	return ch
}

func (s *memoryCredentialStore) removeWatcher(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watchers {
		if w == ch {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			return
		}
	}
}

func (s *memoryCredentialStore) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

const credentialChangeChannel = "console:credentials"

type redisCredentialStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCredentialStore(client *redis.Client) CredentialStore {
	if client == nil {
		return nil
	}
	return &redisCredentialStore{
		client: client,
		prefix: "console:cred:",
	}
}

func (s *redisCredentialStore) Load(ctx context.Context) (Credentials, error) {
	vals, err := s.client.MGet(ctx,
		s.prefix+credKeyAccess,
		s.prefix+credKeyRefresh,
		s.prefix+credKeyID,
	).Result()
	if err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	if len(vals) == 3 {
		creds.AccessToken, _ = vals[0].(string)
		creds.RefreshToken, _ = vals[1].(string)
		creds.IDToken, _ = vals[2].(string)
	}
	return creds, nil
}

func (s *redisCredentialStore) Save(ctx context.Context, creds Credentials) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+credKeyAccess, creds.AccessToken, 0)
	pipe.Set(ctx, s.prefix+credKeyRefresh, creds.RefreshToken, 0)
	pipe.Set(ctx, s.prefix+credKeyID, creds.IDToken, 0)
	pipe.Publish(ctx, credentialChangeChannel, "saved")
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisCredentialStore) Clear(ctx context.Context) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx,
		s.prefix+credKeyAccess,
		s.prefix+credKeyRefresh,
		s.prefix+credKeyID,
	)
	pipe.Publish(ctx, credentialChangeChannel, "cleared")
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisCredentialStore) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	sub := s.client.Subscribe(ctx, credentialChangeChannel)
	go func() {
		defer close(ch)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch
}
