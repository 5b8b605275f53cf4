package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

// ListBookings lists the patrol orders created through the assistant.
func (s *Service) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	orders, err := s.store.ListPatrolOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patrol orders: %w", err)
	}
	bookings := make([]domain.Booking, 0, len(orders))
	for _, order := range orders {
		bookings = append(bookings, toBooking(order))
	}
	return bookings, nil
}

// GetBooking returns one patrol order, or nil when it does not exist.
func (s *Service) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	order, err := s.store.GetPatrolOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patrol order: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	b := toBooking(*order)
	return &b, nil
}

func toBooking(order domain.PatrolOrder) domain.Booking {
	return domain.Booking{
		PatrolOrder:       order,
		OrderNatureDesc:   order.OrderNature.Label(),
		ExecutionTypeDesc: order.ExecutionType.Label(),
		PatrolResultsDesc: strings.Join(order.PatrolResults, "、"),
	}
}
