package accountsvc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/notex/core"
)

var (
	ErrEmailExists     = errors.New("an account with this email already exists")
	ErrAccountNotFound = errors.New("This account does not exist")
	ErrWrongPassword   = errors.New("The password does not match the email")

	NowFunc = time.Now // mockable
)

// Account holds the credentials of a user. The document id is the normalized email.
type Account struct {
	UID          string     `json:"uid"`
	Email        string     `json:"email"`
	PasswordHash []byte     `json:"passwordHash"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

func (a Account) fields() core.Fields {
	flds := core.Fields{
		"uid":          a.UID,
		"email":        a.Email,
		"passwordHash": a.PasswordHash,
		"createdAt":    a.CreatedAt,
	}
	if a.LastLogin != nil {
		flds["lastLogin"] = a.LastLogin
	}
	return flds
}

// Service manages credentials in the document store and resolves the request principal.
type Service struct {
	store core.DocumentStore
}

var _ core.AccountService = (*Service)(nil)

func NewService(store core.DocumentStore) *Service {
	return &Service{store: store}
}

// CurrentPrincipal returns the user id attached to ctx by the HTTP layer.
func (svc *Service) CurrentPrincipal(ctx context.Context) (string, bool) {
	return core.PrincipalFromContext(ctx)
}

// SignUp creates an account and returns its new user id.
func (svc *Service) SignUp(ctx context.Context, email, pwd string) (string, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return "", core.NewFieldError("email", "this field is required")
	}

	acc := Account{
		UID:       uuid.New().String(),
		Email:     email,
		CreatedAt: NowFunc().UTC(),
	}
	if err := acc.SetPassword(pwd); err != nil {
		return "", errors.Wrap(err, "hashing password")
	}

	err := svc.store.RunTransaction(ctx, func(ctx context.Context, tx core.DocumentTx) error {
		_, err := tx.GetDocument(ctx, core.AccountsCollection, email)
		switch {
		case err == nil:
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		case !errors.Is(err, core.ErrNotFound):
			return errors.Wrap(err, "checking email")
		}
		return tx.SetDocument(ctx, core.AccountsCollection, email, acc.fields(), false)
	})
	if err != nil {
		return "", errors.Wrap(err, "signing up")
	}
	return acc.UID, nil
}

// Authenticate checks the credentials and returns the user id.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (string, error) {
	acc, err := svc.get(ctx, email)
	if err != nil {
		return "", err
	}
	if err = acc.CheckPassword(pwd); err != nil {
		return "", core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "password", Error: ErrWrongPassword.Error()})
	}

	now := NowFunc().UTC()
	if err = svc.store.UpdateDocument(ctx, core.AccountsCollection, acc.Email, core.Fields{"lastLogin": now}); err != nil {
		return "", errors.Wrap(err, "setting lastLogin")
	}
	return acc.UID, nil
}

// SetPassword creates the account of email or resets its password. It returns the user id.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (uid string, created bool, err error) {
	acc, err := svc.get(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		uid, err = svc.SignUp(ctx, email, pwd)
		return uid, err == nil, err
	default:
		return "", false, err
	}

	if err = acc.SetPassword(pwd); err != nil {
		return "", false, errors.Wrap(err, "hashing password")
	}
	if err = svc.store.UpdateDocument(ctx, core.AccountsCollection, acc.Email, core.Fields{"passwordHash": acc.PasswordHash}); err != nil {
		return "", false, errors.Wrap(err, "updating password")
	}
	return acc.UID, false, nil
}

func (svc *Service) get(ctx context.Context, email string) (Account, error) {
	email = core.CleanString(email, true /* lower */)
	doc, err := svc.store.GetDocument(ctx, core.AccountsCollection, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Account{}, core.NewValidationError(ErrAccountNotFound, core.FieldError{Field: "email", Error: ErrAccountNotFound.Error()})
		}
		return Account{}, errors.Wrap(err, "getting account")
	}
	var acc Account
	if err = doc.DataTo(&acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}
