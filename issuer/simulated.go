package issuer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/metrics"
)

var (
	tokenNamePattern   = regexp.MustCompile(`^[a-zA-Z0-9]{3,20}$`)
	tokenTickerPattern = regexp.MustCompile(`^[A-Z0-9]{3,10}$`)
)

// ValidateIssueRequest applies the issuer's naming and payment rules.
func ValidateIssueRequest(req interfaces.IssueRequest) *interfaces.IssuerError {
	if !tokenNamePattern.MatchString(req.Name) {
		return interfaces.NewIssuerError(interfaces.ReturnCodeUserError, "invalid token name %q: 3 to 20 alphanumeric characters", req.Name)
	}
	if !tokenTickerPattern.MatchString(req.Ticker) {
		return interfaces.NewIssuerError(interfaces.ReturnCodeUserError, "invalid ticker %q: 3 to 10 uppercase alphanumeric characters", req.Ticker)
	}
	if req.Payment.Sign() <= 0 {
		return interfaces.NewIssuerError(interfaces.ReturnCodeOutOfFunds, "issue cost must be paid")
	}
	return nil
}

type simulatedToken struct {
	properties interfaces.TokenProperties
	managed    bool
	owner      interfaces.Address
	roles      map[interfaces.Address]interfaces.RoleSet
}

// SimulatedIssuerConfig configures a SimulatedIssuer.
type SimulatedIssuerConfig struct {
	// Delay before each completion is delivered
	Delay time.Duration

	// Faults makes every call of an operation complete with the given error
	Faults map[interfaces.IssuerOperation]*interfaces.IssuerError

	// Rejections makes every call of an operation fail at submission
	Rejections map[interfaces.IssuerOperation]error
}

// SimulatedIssuer is an in-process interfaces.ExternalIssuer. Tokens are issued to the
// simulated issuer itself, which manages them until ownership is transferred.
type SimulatedIssuer struct {
	mu     sync.Mutex
	cfg    SimulatedIssuerConfig
	tokens map[interfaces.TokenIdentifier]*simulatedToken
	sink   interfaces.CompletionSink
	log    *slog.Logger

	pending sync.WaitGroup
}

func NewSimulatedIssuer(cfg SimulatedIssuerConfig, sink interfaces.CompletionSink, log *slog.Logger) *SimulatedIssuer {
	return &SimulatedIssuer{
		cfg:    cfg,
		tokens: make(map[interfaces.TokenIdentifier]*simulatedToken),
		sink:   sink,
		log:    log,
	}
}

// SetFault changes the completion fault injected for op. A nil error clears it.
func (s *SimulatedIssuer) SetFault(op interfaces.IssuerOperation, err *interfaces.IssuerError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Faults == nil {
		s.cfg.Faults = make(map[interfaces.IssuerOperation]*interfaces.IssuerError)
	}
	if err == nil {
		delete(s.cfg.Faults, op)
		return
	}
	s.cfg.Faults[op] = err
}

func (s *SimulatedIssuer) Issue(ctx context.Context, req interfaces.IssueRequest, cb []byte) error {
	if err := s.rejection(interfaces.OperationIssue); err != nil {
		return err
	}

	s.complete(interfaces.OperationIssue, cb, func() (interfaces.TokenIdentifier, *interfaces.IssuerError) {
		if ierr := ValidateIssueRequest(req); ierr != nil {
			return "", ierr
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		handle, err := s.newHandle(req.Ticker)
		if err != nil {
			return "", interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "%v", err)
		}
		s.tokens[handle] = &simulatedToken{
			properties: req.Properties,
			managed:    true,
			roles:      make(map[interfaces.Address]interfaces.RoleSet),
		}
		return handle, nil
	})
	return nil
}

func (s *SimulatedIssuer) SetRoles(ctx context.Context, owner interfaces.Address, token interfaces.TokenIdentifier, roles interfaces.RoleSet, cb []byte) error {
	if err := s.rejection(interfaces.OperationSetRoles); err != nil {
		return err
	}

	s.complete(interfaces.OperationSetRoles, cb, func() (interfaces.TokenIdentifier, *interfaces.IssuerError) {
		s.mu.Lock()
		defer s.mu.Unlock()

		t, ierr := s.managedToken(token)
		if ierr != nil {
			return token, ierr
		}
		if !t.properties.CanAddSpecialRoles {
			return token, interfaces.NewIssuerError(interfaces.ReturnCodeUserError, "cannot add special roles to %s", token)
		}
		t.roles[owner] = append(interfaces.RoleSet(nil), roles...)
		return token, nil
	})
	return nil
}

func (s *SimulatedIssuer) TransferOwnership(ctx context.Context, token interfaces.TokenIdentifier, newOwner interfaces.Address, cb []byte) error {
	if err := s.rejection(interfaces.OperationTransferOwnership); err != nil {
		return err
	}

	s.complete(interfaces.OperationTransferOwnership, cb, func() (interfaces.TokenIdentifier, *interfaces.IssuerError) {
		s.mu.Lock()
		defer s.mu.Unlock()

		t, ierr := s.managedToken(token)
		if ierr != nil {
			return token, ierr
		}
		if !t.properties.CanChangeOwner {
			return token, interfaces.NewIssuerError(interfaces.ReturnCodeUserError, "ownership of %s cannot change", token)
		}
		t.managed = false
		t.owner = newOwner
		return token, nil
	})
	return nil
}

// Owner returns the owner of token once ownership has been transferred.
func (s *SimulatedIssuer) Owner(token interfaces.TokenIdentifier) (interfaces.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.managed {
		return interfaces.Address{}, false
	}
	return t.owner, true
}

// Roles returns the roles granted to holder on token.
func (s *SimulatedIssuer) Roles(token interfaces.TokenIdentifier, holder interfaces.Address) interfaces.RoleSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok {
		return nil
	}
	return append(interfaces.RoleSet(nil), t.roles[holder]...)
}

// Wait blocks until every accepted call has been delivered.
func (s *SimulatedIssuer) Wait() {
	s.pending.Wait()
}

func (s *SimulatedIssuer) rejection(op interfaces.IssuerOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.cfg.Rejections[op]; ok && err != nil {
		return err
	}
	return nil
}

// complete runs apply after the configured delay and delivers its outcome.
func (s *SimulatedIssuer) complete(op interfaces.IssuerOperation, cb []byte, apply func() (interfaces.TokenIdentifier, *interfaces.IssuerError)) {
	s.pending.Add(1)
	start := time.Now()

	time.AfterFunc(s.cfg.Delay, func() {
		defer s.pending.Done()

		completion := interfaces.Completion{Operation: op, Callback: cb}

		s.mu.Lock()
		fault := s.cfg.Faults[op]
		s.mu.Unlock()

		if fault != nil {
			completion.Err = fault
		} else {
			completion.Handle, completion.Err = apply()
		}

		if completion.Err != nil {
			s.log.Debug("Simulated issuer call failed",
				slog.String("operation", string(op)),
				"err", completion.Err)
		}
		metrics.ObserveIssuerCall(string(op), time.Since(start))
		s.sink.Deliver(completion)
	})
}

// managedToken must be called with s.mu held.
func (s *SimulatedIssuer) managedToken(token interfaces.TokenIdentifier) (*simulatedToken, *interfaces.IssuerError) {
	t, ok := s.tokens[token]
	if !ok {
		return nil, interfaces.NewIssuerError(interfaces.ReturnCodeUserError, "token %s not found", token)
	}
	if !t.managed {
		return nil, interfaces.NewIssuerError(interfaces.ReturnCodeUserError, "caller is not the manager of %s", token)
	}
	return t, nil
}

// newHandle must be called with s.mu held.
func (s *SimulatedIssuer) newHandle(ticker string) (interfaces.TokenIdentifier, error) {
	for range 8 {
		var suffix [3]byte
		if _, err := rand.Read(suffix[:]); err != nil {
			return "", fmt.Errorf("failed to generate token suffix: %w", err)
		}
		handle := interfaces.TokenIdentifier(ticker + "-" + hex.EncodeToString(suffix[:]))
		if _, taken := s.tokens[handle]; !taken {
			return handle, nil
		}
	}
	return "", fmt.Errorf("no free token identifier for %s", ticker)
}
