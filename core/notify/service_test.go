package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planbord/backend/core"
	"github.com/planbord/backend/core/inventory"
	"github.com/planbord/backend/core/msgraph"
	"github.com/planbord/backend/core/notif"
	"github.com/planbord/backend/core/offline"
	emailsvc "github.com/planbord/backend/services/email"
)

var ctx = context.Background()

type fakeRepo struct {
	products []inventory.Product
}

func (r *fakeRepo) ActiveProducts(ctx context.Context) ([]inventory.Product, error) {
	return r.products, nil
}

// testGraph is a stand-in Graph endpoint: /me validates tokens, /me/sendMail
// accepts or rejects depending on sendMailStatus.
type testGraph struct {
	srv            *httptest.Server
	sendMailStatus int
	sendMailHits   int
}

func newTestGraph() *testGraph {
	g := &testGraph{sendMailStatus: http.StatusAccepted}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me":
			w.WriteHeader(http.StatusOK)
		case "/me/sendMail":
			g.sendMailHits++
			w.WriteHeader(g.sendMailStatus)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return g
}

type testEnv struct {
	conf    *core.Config
	coord   *offline.Coordinator
	graph   *testGraph
	service *Service
}

// newTestEnv wires a service against httptest servers. online controls the
// connectivity probe, authenticated whether a valid Graph token is stored.
func newTestEnv(t *testing.T, online, authenticated bool, products inventory.Repository) *testEnv {
	t.Helper()

	graph := newTestGraph()
	t.Cleanup(graph.srv.Close)

	probeStatus := http.StatusOK
	if !online {
		probeStatus = http.StatusServiceUnavailable
	}
	probeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(probeStatus)
	}))
	t.Cleanup(probeSrv.Close)

	conf := &core.Config{
		NotificationEmail:    "ops@test.test",
		ConnectivityProbeURL: probeSrv.URL,
		Microsoft: core.MicrosoftConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TenantID:     "common",
			Authority:    graph.srv.URL,
			GraphBaseURL: graph.srv.URL,
		},
	}

	store := msgraph.NewInMemStore()
	if authenticated {
		require.NoError(t, store.Save(msgraph.Token{
			AccessToken: "at",
			ExpiresAt:   time.Now().UTC().Add(time.Hour),
		}))
	}
	client := msgraph.NewClient(conf, store, core.NewNopLogger())
	assert.Equal(t, authenticated, client.Initialize(ctx))
	sender := msgraph.NewSender(client, core.NewNopLogger())

	coord := offline.NewCoordinator(conf, products, sender, core.NewNopLogger())
	coord.CheckConnectivity(ctx)

	return &testEnv{
		conf:    conf,
		coord:   coord,
		graph:   graph,
		service: NewService(conf, coord, sender, nil, products, core.NewNopLogger()),
	}
}

func completeAlert() notif.LowStockAlert {
	return notif.LowStockAlert{
		ProductName:     "Blue Widget",
		SKU:             "BW-001",
		CurrentQuantity: 3,
		MinimumQuantity: 10,
		ReorderQuantity: 50,
	}
}

func TestService_NotifyLowStock(t *testing.T) {
	t.Run("sent through graph", func(t *testing.T) {
		env := newTestEnv(t, true, true, nil)

		res := env.service.NotifyLowStock(ctx, completeAlert())

		assert.Equal(t, ResultSent, res)
		assert.Equal(t, 1, env.graph.sendMailHits)
		assert.Empty(t, env.coord.Pending())
	})

	t.Run("offline, queued without touching the network", func(t *testing.T) {
		env := newTestEnv(t, false, true, nil)

		res := env.service.NotifyLowStock(ctx, completeAlert())

		assert.Equal(t, ResultQueued, res)
		assert.Equal(t, 0, env.graph.sendMailHits)

		ops := env.coord.Pending()
		require.Len(t, ops, 1)
		assert.Equal(t, offline.OpRestockNotification, ops[0].Type)
		assert.Equal(t, "ops@test.test", ops[0].Data["to"])
		assert.Equal(t, "Low Stock Alert - Blue Widget", ops[0].Data["subject"])
		assert.Contains(t, ops[0].Data["body"], "Blue Widget")
	})

	t.Run("graph rejection falls back to the queue", func(t *testing.T) {
		env := newTestEnv(t, true, true, nil)
		env.graph.sendMailStatus = http.StatusInternalServerError

		res := env.service.NotifyLowStock(ctx, completeAlert())

		assert.Equal(t, ResultQueued, res)
		assert.Equal(t, 1, env.graph.sendMailHits)
		require.Len(t, env.coord.Pending(), 1)
	})

	t.Run("fallback provider when graph is unavailable", func(t *testing.T) {
		env := newTestEnv(t, false, false, nil)
		mock := emailsvc.NewConsoleServiceMock(env.conf)
		env.service.fallback = mock

		sentBefore := len(emailsvc.SentMessages)
		res := env.service.NotifyLowStock(ctx, completeAlert())

		assert.Equal(t, ResultSent, res)
		assert.Empty(t, env.coord.Pending())
		require.Len(t, emailsvc.SentMessages, sentBefore+1)
		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		assert.Equal(t, "ops@test.test", msg.To[0].Address)
		assert.Equal(t, "Low Stock Alert - Blue Widget", msg.Subject)
	})

	t.Run("incomplete payload fails loudly", func(t *testing.T) {
		env := newTestEnv(t, true, true, nil)

		res := env.service.NotifyLowStock(ctx, notif.LowStockAlert{SKU: "BW-001"})

		assert.Equal(t, ResultFailed, res)
		assert.Equal(t, 0, env.graph.sendMailHits)
		assert.Empty(t, env.coord.Pending())
	})

	t.Run("no notification address configured", func(t *testing.T) {
		env := newTestEnv(t, true, true, nil)
		env.conf.NotificationEmail = ""

		res := env.service.NotifyLowStock(ctx, completeAlert())

		assert.Equal(t, ResultFailed, res)
		assert.Equal(t, 0, env.graph.sendMailHits)
	})
}

func TestService_RemindPayment(t *testing.T) {
	env := newTestEnv(t, false, true, nil)

	res := env.service.RemindPayment(ctx, notif.PaymentReminder{
		InvoiceNumber: "INV-1",
		Amount:        "1250.00",
		DueDate:       "2024-03-01",
		CustomerName:  "Acme Corp",
	})

	assert.Equal(t, ResultQueued, res)
	ops := env.coord.Pending()
	require.Len(t, ops, 1)
	assert.Equal(t, offline.OpPaymentReminder, ops[0].Type)
	assert.Equal(t, "Payment Reminder - Invoice INV-1", ops[0].Data["subject"])
}

func TestService_AssignTask(t *testing.T) {
	env := newTestEnv(t, false, true, nil)

	res := env.service.AssignTask(ctx, notif.TaskAssignment{
		TaskTitle:       "Restock shelves",
		TaskDescription: "Aisle 4",
		DueDate:         "2024-03-05",
		Priority:        "high",
	}, "jo@test.test")

	assert.Equal(t, ResultQueued, res)
	ops := env.coord.Pending()
	require.Len(t, ops, 1)
	assert.Equal(t, offline.OpTaskAssignment, ops[0].Type)
	// task assignments go to the employee, not the ops address
	assert.Equal(t, "jo@test.test", ops[0].Data["to"])
}

func TestService_CheckRestock(t *testing.T) {
	repo := &fakeRepo{products: []inventory.Product{
		{SKU: "BW-001", Name: "Blue Widget", CurrentQuantity: 3, MinimumQuantity: 10, IsActive: true},
		{SKU: "RW-002", Name: "Red Widget", CurrentQuantity: 10, MinimumQuantity: 10, IsActive: true}, // at minimum, not below
		{SKU: "GW-003", Name: "Green Widget", CurrentQuantity: 0, MinimumQuantity: 5, IsActive: true},
	}}
	env := newTestEnv(t, true, true, repo)

	handled := env.service.CheckRestock(ctx)

	assert.Equal(t, 2, handled)
	assert.Equal(t, 2, env.graph.sendMailHits)
}

func TestService_CheckRestock_noRepository(t *testing.T) {
	env := newTestEnv(t, true, true, nil)
	assert.Equal(t, 0, env.service.CheckRestock(ctx))
}
