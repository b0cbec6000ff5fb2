package accounts

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
)

// DefaultPhoneRegion is used to parse phone numbers without a country code.
var DefaultPhoneRegion = "US"

type RegisterUserMessage struct {
	FullName   string           `json:"full_name"`
	Email      string           `json:"email"`
	Phone      string           `json:"phone_number"`
	Password   string           `json:"-"`
	UseHashid  bool             `json:"-"`
	OnResponse func(user *User) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.FullName, validation.Required, validation.RuneLength(1, MaxFullNameLength)),
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordLength)),
	)
	if err != nil {
		return accountsError(CodeValidationFailed).Wrap(err)
	}
	return nil
}

type RegisterUserHandler struct {
	repo        RepositoryManager
	activity    ActivitySink
	logger      Logger
	phoneRegion string
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:        repo,
		activity:    noopActivitySink{},
		logger:      defLogger{},
		phoneRegion: DefaultPhoneRegion,
	}
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

// WithPhoneRegion sets the region used for numbers given without a
// country code.
func (h *RegisterUserHandler) WithPhoneRegion(region string) *RegisterUserHandler {
	if region != "" {
		h.phoneRegion = region
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return cancelledError(ctx.Err(), "user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	phone, err := NormalizePhone(event.Phone, h.phoneRegion)
	if err != nil {
		return err
	}

	opts := []UserOption{
		WithFullName(event.FullName),
		WithPhone(phone),
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(NormalizeEmail(event.Email)); err == nil {
			opts = append(opts, WithUserID(id))
		}
	}

	user, err := NewUser(event.Email, event.Password, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().CreateTx(ctx, tx, user)
		return err
	})

	if err != nil {
		if ErrorCode(err) == CodeEmailTaken {
			return err
		}
		return internalError(err, "user registration transaction failed")
	}

	h.logger.Info("registered user %s", user.ID)

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     userActor(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// NormalizePhone parses phone with region as the default country and
// formats it as E.164. An empty phone is returned as is.
func NormalizePhone(phone, region string) (string, error) {
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", accountsError(CodeValidationFailed).
			With("field", "phone_number").
			Wrap(validation.Errors{
				"phone_number": errors.New("must be a valid phone number"),
			})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
