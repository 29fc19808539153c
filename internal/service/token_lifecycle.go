package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Margen de refresh: lead segundos antes de exp, nunca antes que floor.
const (
	defaultRefreshLead  = 60 * time.Second
	defaultRefreshFloor = 5 * time.Second
)

var ErrNoCredentials = errors.New("no credentials stored")

// Refresher intercambia el refresh token por credenciales nuevas.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
}

// TokenLifecycle mantiene frescas las credenciales de plataforma: decodifica
// el exp del access token, agenda un único timer de refresh y encadena el
// siguiente tras cada refresh exitoso. Un refresh fallido limpia todas las
// credenciales y fuerza el logout; no hay reintentos.
type TokenLifecycle struct {
	logger    *zap.Logger
	store     CredentialStore
	refresher Refresher
	onLogout  func()

	lead  time.Duration
	floor time.Duration
	now   func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewTokenLifecycle(logger *zap.Logger, store CredentialStore, refresher Refresher, onLogout func()) *TokenLifecycle {
	return &TokenLifecycle{
		logger:    logger,
		store:     store,
		refresher: refresher,
		onLogout:  onLogout,
		lead:      defaultRefreshLead,
		floor:     defaultRefreshFloor,
		now:       time.Now,
	}
}

// DecodeExpiry extrae el claim exp de un JWT sin verificar la firma.
// Un token ilegible devuelve ok=false: sin expiración conocida no se agenda
// refresh proactivo y el manejo pasivo de 401 toma el control.
func DecodeExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}

// RefreshDelay calcula la espera hasta el próximo refresh.
func RefreshDelay(exp, now time.Time, lead, floor time.Duration) time.Duration {
	d := exp.Sub(now) - lead
	if d < floor {
		return floor
	}
	return d
}

// Start lee las credenciales persistidas, agenda el primer refresh y escucha
// cambios del store hechos por otros escritores.
func (t *TokenLifecycle) Start(ctx context.Context) error {
	creds, err := t.store.Load(ctx)
	if err != nil {
		return err
	}
	if creds.Empty() {
		return ErrNoCredentials
	}
	t.scheduleFromToken(creds.AccessToken)
	go t.watchChanges(ctx)
	return nil
}

// Stop cancela el timer pendiente. No hay refresh después del teardown.
func (t *TokenLifecycle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TokenLifecycle) watchChanges(ctx context.Context) {
	ch := t.store.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			creds, err := t.store.Load(ctx)
			if err != nil {
				t.logger.Warn("credential reload failed", zap.Error(err))
				continue
			}
			if creds.Empty() {
				// Otro escritor cerró la sesión.
				t.cancelTimer()
				continue
			}
			t.scheduleFromToken(creds.AccessToken)
		}
	}
}

// scheduleFromToken agenda exactamente un timer; cualquier timer previo se
// cancela primero.
func (t *TokenLifecycle) scheduleFromToken(accessToken string) {
	exp, ok := DecodeExpiry(accessToken)
	if !ok {
		t.cancelTimer()
		return
	}
	delay := RefreshDelay(exp, t.now(), t.lead, t.floor)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(delay, t.refreshNow)
}

func (t *TokenLifecycle) refreshNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	creds, err := t.store.Load(ctx)
	if err != nil || creds.RefreshToken == "" {
		t.forceLogout(ctx)
		return
	}

	renewed, err := t.refresher.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		t.logger.Warn("credential refresh failed", zap.Error(err))
		t.forceLogout(ctx)
		return
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = creds.RefreshToken
	}
	if err := t.store.Save(ctx, renewed); err != nil {
		t.logger.Warn("credential persist failed", zap.Error(err))
		t.forceLogout(ctx)
		return
	}

	// Cadena auto-perpetuada: el refresh exitoso agenda el siguiente.
	t.scheduleFromToken(renewed.AccessToken)
}

// forceLogout limpia todas las credenciales de una vez y dispara el hook de
// logout. No queda estado parcial.
func (t *TokenLifecycle) forceLogout(ctx context.Context) {
	if err := t.store.Clear(ctx); err != nil {
		t.logger.Warn("credential clear failed", zap.Error(err))
	}
	t.cancelTimer()
	if t.onLogout != nil {
		t.onLogout()
	}
}

func (t *TokenLifecycle) cancelTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
