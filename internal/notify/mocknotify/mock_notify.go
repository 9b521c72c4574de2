package mocknotify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turfwar-server/internal/notify"
)

type Dispatcher struct {
	mock.Mock
}

func (d *Dispatcher) Send(ctx context.Context, email notify.Email) error {
	args := d.Called(ctx, email)
	return args.Error(0)
}
