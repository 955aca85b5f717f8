package availability

import (
	"context"

	"ecostay/internal/app/dto"
	"ecostay/internal/app/queries"
	"ecostay/internal/app/uow"
)

const getCalendarKey = "availability.calendar"

type GetCalendarQuery struct {
	ListingID string `validate:"required"`
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	var calendar dto.Calendar
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, q.ListingID)
		if err != nil {
			return err
		}
		doc, err := unit.Availability().Get(ctx, listing.ID, listing.HostID)
		if err != nil {
			return err
		}
		calendar = dto.MapCalendar(doc)
		return nil
	})
	if err != nil {
		return dto.Calendar{}, err
	}
	return calendar, nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
