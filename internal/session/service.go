package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/renovo/internal/audit"
	"github.com/dropDatabas3/renovo/internal/cache"
	"github.com/dropDatabas3/renovo/internal/jwt"
	"github.com/dropDatabas3/renovo/internal/metrics"
	"github.com/dropDatabas3/renovo/internal/observability/logger"
	"github.com/dropDatabas3/renovo/internal/security/password"
	tokens "github.com/dropDatabas3/renovo/internal/security/token"
	"github.com/dropDatabas3/renovo/internal/store/core"
	"github.com/google/uuid"
)

// secretRetries: reintentos ante colisión del secreto generado.
// Con 256 bits de entropía la colisión es teórica; el retry existe para
// honrar el contrato del store, no porque se espere que ocurra.
const secretRetries = 3

// accountCacheTTL acota el snapshot de cuenta usado por la rotación.
const accountCacheTTL = 5 * time.Minute

// Deps contiene las dependencias del orquestador.
type Deps struct {
	Repo        core.Repository
	Issuer      *jwt.Issuer
	Verifier    *Verifier
	Hasher      password.Hasher
	Cache       cache.Cache // opcional: snapshot de cuentas para rotación
	RotationTTL time.Duration
}

// Service es el punto de entrada de los flujos de sign-in y refresh.
// Coordina signer, store y máquina de estados; toda escritura pasa por
// el unit of work.
type Service struct {
	repo        core.Repository
	issuer      *jwt.Issuer
	verifier    *Verifier
	hasher      password.Hasher
	cache       cache.Cache
	rotationTTL time.Duration
}

func NewService(deps Deps) *Service {
	ttl := deps.RotationTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	v := deps.Verifier
	if v == nil {
		v = NewVerifier(deps.Issuer)
	}
	return &Service{
		repo:        deps.Repo,
		issuer:      deps.Issuer,
		verifier:    v,
		hasher:      deps.Hasher,
		cache:       deps.Cache,
		rotationTTL: ttl,
	}
}

// SignIn verifica el secreto contra el hash guardado y, si es válido,
// emite un par fresco. "Cuenta inexistente" y "secreto incorrecto"
// salen igual (IncorrectIdentity): endurecimiento contra enumeración.
func (s *Service) SignIn(ctx context.Context, username, secret string) Result {
	log := logger.From(ctx).With(logger.Component("session.service"), logger.Op("SignIn"))

	uow := s.repo.NewUnitOfWork()
	acct, err := uow.Accounts().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			metrics.SignInAttempts.WithLabelValues(StatusIncorrectIdentity.String()).Inc()
			return Result{Status: StatusIncorrectIdentity}
		}
		log.Error("account lookup failed", logger.Err(err))
		metrics.SignInAttempts.WithLabelValues(StatusFailed.String()).Inc()
		return failed()
	}
	if !s.hasher.Verify(secret, acct.SecretHash, acct.SecurityStamp) {
		metrics.SignInAttempts.WithLabelValues(StatusIncorrectIdentity.String()).Inc()
		return Result{Status: StatusIncorrectIdentity}
	}

	uow.UseActor(acct.ID)
	for attempt := 0; attempt < secretRetries; attempt++ {
		pair, credentialID, err := s.stagePair(ctx, uow, acct)
		if err != nil {
			log.Error("pair staging failed", logger.Err(err))
			metrics.SignInAttempts.WithLabelValues(StatusFailed.String()).Inc()
			return failed()
		}
		if _, err := uow.SaveChanges(ctx); err != nil {
			if errors.Is(err, core.ErrConflict) {
				continue // colisión de secreto: regenerar
			}
			log.Error("sign-in persist failed", logger.Err(err))
			metrics.SignInAttempts.WithLabelValues(StatusFailed.String()).Inc()
			return failed()
		}
		metrics.SignInAttempts.WithLabelValues(StatusSuccessful.String()).Inc()
		audit.Log(ctx, audit.EventPairIssued, acct.ID, logger.OwnerID(acct.ID), logger.CredentialID(credentialID))
		return Result{Status: StatusSuccessful, Pair: pair}
	}
	log.Error("secret generation exhausted retries")
	metrics.SignInAttempts.WithLabelValues(StatusFailed.String()).Inc()
	return failed()
}

// Rotate delega la adjudicación en el Verifier y, solo ante Successful,
// emite y persiste el par nuevo en la misma transacción que consumió el
// viejo. Cualquier otro outcome vuelve al caller sin emisión parcial.
func (s *Service) Rotate(ctx context.Context, accessToken, rotationSecret string) Result {
	for attempt := 0; attempt < secretRetries; attempt++ {
		res, retry := s.rotateOnce(ctx, accessToken, rotationSecret)
		if !retry {
			metrics.RotationAttempts.WithLabelValues(res.Status.String()).Inc()
			return res
		}
	}
	metrics.RotationAttempts.WithLabelValues(StatusFailed.String()).Inc()
	return failed()
}

// rotateOnce corre una rotación completa. El segundo retorno pide
// reintentar todo (colisión de secreto: la transacción ya se deshizo,
// el used del token viejo quedó restaurado).
func (s *Service) rotateOnce(ctx context.Context, accessToken, rotationSecret string) (Result, bool) {
	log := logger.From(ctx).With(logger.Component("session.service"), logger.Op("Rotate"))

	uow := s.repo.NewUnitOfWork()
	defer func() { _ = uow.Rollback(ctx) }()

	// Una vez adentro no hay cancelación: consume + persistencia del par
	// nuevo corren enteras o se deshacen enteras.
	if err := uow.Begin(ctx); err != nil {
		log.Error("begin failed", logger.Err(err))
		return failed(), false
	}

	st, rec, err := s.verifier.Verify(ctx, uow, accessToken, rotationSecret)
	if err != nil {
		log.Error("verify failed", logger.Err(err))
		return failed(), false
	}
	if st != StatusSuccessful {
		// El rollback del defer descarta la marca staged si la hubiera.
		return Result{Status: st}, false
	}

	uow.UseActor(rec.OwnerID)
	acct, err := s.lookupAccount(ctx, uow, rec.OwnerID)
	if err != nil {
		log.Error("owner lookup failed", logger.OwnerID(rec.OwnerID), logger.Err(err))
		return failed(), false
	}

	pair, credentialID, err := s.stagePair(ctx, uow, acct)
	if err != nil {
		log.Error("pair staging failed", logger.Err(err))
		return failed(), false
	}

	if _, err := uow.SaveChanges(ctx); err != nil {
		if errors.Is(err, core.ErrConflict) {
			_ = uow.Rollback(ctx)
			return Result{}, true
		}
		log.Error("rotation persist failed", logger.Err(err))
		return failed(), false
	}
	if err := uow.Commit(ctx); err != nil {
		log.Error("rotation commit failed", logger.Err(err))
		return failed(), false
	}

	audit.Log(ctx, audit.EventPairRotated, rec.OwnerID,
		logger.OwnerID(rec.OwnerID),
		logger.TokenID(rec.ID),
		logger.CredentialID(credentialID),
	)
	return Result{Status: StatusSuccessful, Pair: pair}, false
}

// RevokeAllForOwner revoca todos los tokens activos del owner (los
// usados/vencidos ya son terminales). NotFound solo si el owner no
// tiene ningún token; con tokens pero cero activos sigue Successful.
func (s *Service) RevokeAllForOwner(ctx context.Context, ownerID string) Result {
	log := logger.From(ctx).With(logger.Component("session.service"), logger.Op("RevokeAllForOwner"))

	uow := s.repo.NewUnitOfWork()
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.Begin(ctx); err != nil {
		log.Error("begin failed", logger.Err(err))
		return failed()
	}
	toks, err := uow.Tokens().ListByOwner(ctx, ownerID)
	if err != nil {
		log.Error("list failed", logger.OwnerID(ownerID), logger.Err(err))
		return failed()
	}
	if len(toks) == 0 {
		return Result{Status: StatusNotFound}
	}
	active, err := uow.Tokens().ListActiveByOwner(ctx, ownerID)
	if err != nil {
		log.Error("list active failed", logger.OwnerID(ownerID), logger.Err(err))
		return failed()
	}

	uow.UseActor(ownerID)
	for _, t := range active {
		if err := uow.Tokens().MarkRevoked(ctx, t.ID); err != nil {
			log.Error("revoke staging failed", logger.TokenID(t.ID), logger.Err(err))
			return failed()
		}
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		log.Error("revoke persist failed", logger.Err(err))
		return failed()
	}
	if err := uow.Commit(ctx); err != nil {
		log.Error("revoke commit failed", logger.Err(err))
		return failed()
	}

	s.invalidateAccount(ownerID)
	audit.Log(ctx, audit.EventOwnerRevoked, ownerID, logger.OwnerID(ownerID))
	return Result{Status: StatusSuccessful}
}

// Sweep elimina las filas con expiresAt < now OR used = true. Pensado
// para correr agendado (ver Sweeper), pero invocable en forma síncrona.
func (s *Service) Sweep(ctx context.Context) Result {
	log := logger.From(ctx).With(logger.Component("session.service"), logger.Op("Sweep"))

	uow := s.repo.NewUnitOfWork()
	n, err := uow.Tokens().SweepExpiredOrUsed(ctx, time.Now().UTC())
	if err != nil {
		log.Error("sweep failed", logger.Err(err))
		return failed()
	}
	metrics.TokensSwept.Add(float64(n))
	if n > 0 {
		audit.Log(ctx, audit.EventSweep, "", logger.Swept(n))
	}
	return Result{Status: StatusSuccessful, Swept: n}
}

// stagePair emite la credencial firmada y stagea el rotation token que
// la acompaña, ligados por un credentialId nuevo.
func (s *Service) stagePair(ctx context.Context, uow core.UnitOfWork, acct *core.Account) (*CredentialPair, string, error) {
	credentialID := uuid.NewString()
	access, exp, err := s.issuer.Issue(acct.ID, acct.DisplayName, acct.Role, credentialID)
	if err != nil {
		return nil, "", err
	}
	secret, err := tokens.GenerateRotationSecret()
	if err != nil {
		return nil, "", err
	}

	t := &core.RotationToken{
		OwnerID:          acct.ID,
		CredentialID:     credentialID,
		Secret:           secret,
		ExpiresAt:        time.Now().UTC().Add(s.rotationTTL),
		OwnerDisplayName: acct.DisplayName,
	}
	if err := uow.Tokens().Insert(ctx, t); err != nil {
		return nil, "", err
	}

	return &CredentialPair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RotationSecret:   secret,
		OwnerDisplayName: acct.DisplayName,
	}, credentialID, nil
}

// lookupAccount resuelve la cuenta del owner, con cache si está
// configurado (la rotación es el camino caliente).
func (s *Service) lookupAccount(ctx context.Context, uow core.UnitOfWork, id string) (*core.Account, error) {
	key := "acct:" + id
	if s.cache != nil {
		if b, ok := s.cache.Get(key); ok {
			var a core.Account
			if json.Unmarshal(b, &a) == nil {
				return &a, nil
			}
		}
	}
	a, err := uow.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(a); err == nil {
			s.cache.Set(key, b, accountCacheTTL)
		}
	}
	return a, nil
}

func (s *Service) invalidateAccount(id string) {
	if s.cache != nil {
		s.cache.Delete("acct:" + id)
	}
}
