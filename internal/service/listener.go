package service

import (
	"context"
	"fmt"

	domainauth "github.com/motorcyclejs/authstream/internal/domain/auth"
	"github.com/motorcyclejs/authstream/internal/ports"
)

// Listen registers for the provider's session-change notifications and returns a channel
// with one Status per notification, in notification order. The provider may invoke the
// callback synchronously during registration.
//
// The registration is released when ctx is done, after which the channel is closed.
func Listen(ctx context.Context, provider ports.IdentityProvider) (<-chan domainauth.Status, error) {
	box := newMailbox[domainauth.Status]()
	deliver := func(st domainauth.Status) { box.push(st) }
	if err := register(ctx, provider, deliver, box.close); err != nil {
		box.close()
		return nil, err
	}
	return box.C(), nil
}

// register subscribes deliver to session changes until ctx is done. released, when set,
// runs once the provider registration has been dropped.
func register(
	ctx context.Context,
	provider ports.IdentityProvider,
	deliver func(domainauth.Status),
	released func(),
) error {
	unregister, err := provider.OnSessionChange(func(identity *domainauth.Identity) {
		deliver(domainauth.Status{Identity: identity})
	})
	if err != nil {
		return fmt.Errorf("register session listener: %w", err)
	}

	go func() {
		<-ctx.Done()
		if unregister != nil {
			unregister()
		}
		if released != nil {
			released()
		}
	}()
	return nil
}
