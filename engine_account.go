package boardauth

import (
	"context"

	"github.com/MrEthical07/boardauth/internal/flows"
)

// Register creates a user with role "user". Email availability is checked
// before nickname availability, and both before the password policy, so a
// request failing several rules reports the first one. Soft-deleted
// accounts keep their email and nickname reserved.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Register(ctx, flows.RegisterRequest{
		Email:    in.Email,
		Password: in.Password,
		Nickname: in.Nickname,
	})

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
		user := publicUser(res.User)
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, user.IDString(), nil, nil)
		return user, nil
	case flows.RegisterFailureEmailExists:
		err = emailExists(in.Email)
	case flows.RegisterFailureNicknameExists:
		err = nicknameExists(in.Nickname)
	case flows.RegisterFailurePolicy:
		err = ErrPasswordPolicy.WithMessage("%s", res.Reason)
	default:
		err = res.Err
	}

	if res.Failure == flows.RegisterFailureEmailExists || res.Failure == flows.RegisterFailureNicknameExists {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", err, func() map[string]string {
			return map[string]string{"email": in.Email, "nickname": in.Nickname}
		})
		return nil, err
	}

	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, func() map[string]string {
		return map[string]string{"email": in.Email}
	})
	return nil, err
}
