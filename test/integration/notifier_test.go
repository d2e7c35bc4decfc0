//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/NordCoder/netwatch/internal/domain/notification"
	"github.com/NordCoder/netwatch/internal/domain/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itRecipient = "ops@netwatch.local"

func TestNotifier_HappyPath(t *testing.T) {
	h := newHarness(t)
	h.purgeMail()

	addr := testAddr()
	id := h.seedEndpoint(addr, "it")
	tr := notification.Transition{
		EndpointID: id, Address: addr, Group: "it",
		Old: probe.StatusUp, New: probe.StatusDown, At: time.Now().UTC(),
	}
	h.publish(tr)

	mail := h.waitMail(1, 25*time.Second)
	assert.Contains(t, mail[0].subject(), addr+" is DOWN")
	require.Eventually(t, func() bool { return h.notificationCount(id, itRecipient) == 1 },
		10*time.Second, 300*time.Millisecond)

	// a redelivered transition is not mailed twice
	h.purgeMail()
	h.publish(tr)
	h.expectNoMail(6 * time.Second)
	assert.Equal(t, 1, h.notificationCount(id, itRecipient))
}

func TestNotifier_InvalidEndpointIgnored(t *testing.T) {
	h := newHarness(t)
	h.purgeMail()

	h.publish(notification.Transition{
		Address: testAddr(), Old: probe.StatusUp, New: probe.StatusDown, At: time.Now().UTC(),
	})
	h.expectNoMail(6 * time.Second)
}
