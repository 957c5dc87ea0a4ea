package gacha

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// VoucherDesk wraps the voucher endpoints with local validation
type VoucherDesk struct {
	service  Service
	validate *validator.Validate
	notifier Notifier
	logger   Logger
}

// NewVoucherDesk creates a desk
func NewVoucherDesk(service Service, notifier Notifier, logger Logger) *VoucherDesk {
	return &VoucherDesk{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		notifier: orNop(notifier),
		logger:   orSilent(logger),
	}
}

// Inventory lists owned vouchers; filterID 0 lists all
func (d *VoucherDesk) Inventory(ctx context.Context, filterID uint64) ([]Voucher, error) {
	return d.service.Vouchers(ctx, filterID)
}

// Store lists the templates that can be bought
func (d *VoucherDesk) Store(ctx context.Context) ([]Voucher, error) {
	return d.service.StoreTemplates(ctx)
}

// Purchase buys amount vouchers of templateID. Insufficient flux comes back
// as a rejection with the reason in its message.
func (d *VoucherDesk) Purchase(ctx context.Context, templateID uint64, amount int) (string, error) {
	if err := d.validate.Var(amount, "min=1,max=255"); err != nil {
		return "", invalidParams("purchase", ErrInvalidAmount).WithDetails(err.Error())
	}

	msg, err := d.service.Purchase(ctx, templateID, amount)
	if err != nil {
		d.report(err)
		return "", err
	}

	d.logger.Info("Purchased voucher template %d x%d: %s", templateID, amount, msg)
	emit(d.notifier, Event{Type: EventStatus, Status: msg,
		Rewards: []Reward{{Kind: RewardVoucher, Amount: int64(amount)}}})
	return msg, nil
}

// Redeem consumes an owned voucher
func (d *VoucherDesk) Redeem(ctx context.Context, voucherUUID string) (string, error) {
	if err := uuid.Validate(voucherUUID); err != nil {
		return "", invalidParams("redeem", err)
	}

	status, err := d.service.Consume(ctx, voucherUUID)
	if err != nil {
		d.report(err)
		return "", err
	}
	emit(d.notifier, Event{Type: EventStatus, Status: status})
	return status, nil
}

// Delete discards an owned voucher without using it. The service has a
// single removal endpoint, so this is a consume under another name.
func (d *VoucherDesk) Delete(ctx context.Context, voucherUUID string) error {
	_, err := d.Redeem(ctx, voucherUUID)
	return err
}

// Create validates template locally and adds it to the store
func (d *VoucherDesk) Create(ctx context.Context, template VoucherTemplate) error {
	if err := d.validate.Struct(template); err != nil {
		return invalidParams("create", ErrInvalidVoucher).WithDetails(err.Error())
	}

	if err := d.service.CreateTemplate(ctx, template); err != nil {
		d.report(err)
		return err
	}
	d.logger.Info("Created voucher template %d (%s, cost %d)", template.ID, template.Name, template.Cost)
	return nil
}

// MarkSeen clears the "new" marker; failures are logged only
func (d *VoucherDesk) MarkSeen(ctx context.Context, voucherUUID string) {
	if err := d.service.MarkSeen(ctx, voucherUUID); err != nil {
		d.logger.Debug("Mark seen %s failed: %v", voucherUUID, err)
	}
}

func (d *VoucherDesk) report(err error) {
	d.logger.Error("Voucher operation failed: %v", err)
	emit(d.notifier, Event{Type: EventStatus, Status: StatusMessage(err), Err: err})
}
