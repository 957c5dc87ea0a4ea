package gacha

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeServer starts a gin server and returns a client pointed at it
func newFakeServer(t *testing.T, routes func(r *gin.Engine)) *HTTPClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return NewHTTPClientWithHTTP(srv.URL, "user-1", srv.Client(), nil)
}

func TestNewHTTPClient(t *testing.T) {
	_, err := NewHTTPClient(&ClientConfig{BaseURL: DefaultBaseURL}, nil)
	assert.ErrorIs(t, err, ErrEmptyUserID)

	c, err := NewHTTPClient(&ClientConfig{BaseURL: "http://example.test/", UserID: "u"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", c.baseURL)
	assert.Equal(t, "u", c.UserID())
	assert.Equal(t, DefaultRequestTimeout, c.httpClient.Timeout)
}

func TestHTTPClient_Draw(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks", func(t *testing.T) {
		results := []string{"MythicSSS", "S", "A", "B", "NoTickets"}
		i := 0
		var requestIDs []string
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointPull, func(ctx *gin.Context) {
				var req userRequest
				require.NoError(t, ctx.ShouldBindJSON(&req))
				assert.Equal(t, "user-1", req.UserID)
				requestIDs = append(requestIDs, ctx.GetHeader(RequestIDHeader))

				ctx.JSON(http.StatusOK, gin.H{"result": results[i], "bonus_vouchers": i})
				i++
			})
		})

		want := []Rank{RankMythic, RankS, RankA, RankB, RankNoTickets}
		for n, rank := range want {
			outcome, err := c.Draw(ctx)
			require.NoError(t, err)
			assert.Equal(t, rank, outcome.Rank)
			assert.Equal(t, n, outcome.BonusVouchers)
		}

		require.Len(t, requestIDs, 5)
		assert.NotEmpty(t, requestIDs[0])
		assert.NotEqual(t, requestIDs[0], requestIDs[1])
	})

	t.Run("unknown_rank_is_malformed", func(t *testing.T) {
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointPull, func(ctx *gin.Context) {
				ctx.JSON(http.StatusOK, gin.H{"result": "Z"})
			})
		})

		_, err := c.Draw(ctx)
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.ErrorIs(t, err, ErrUnknownRank)
		assert.True(t, IsTransportError(err))
	})

	t.Run("garbage_body_is_malformed", func(t *testing.T) {
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointPull, func(ctx *gin.Context) {
				ctx.String(http.StatusOK, "<html>")
			})
		})

		_, err := c.Draw(ctx)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("server_error_is_transport", func(t *testing.T) {
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointPull, func(ctx *gin.Context) {
				ctx.String(http.StatusInternalServerError, "boom")
			})
		})

		_, err := c.Draw(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBadStatus)
		assert.True(t, IsTransportError(err))

		var ge *GachaError
		require.True(t, errors.As(err, &ge))
		assert.Equal(t, http.StatusInternalServerError, ge.StatusCode)
		assert.True(t, ge.Retryable)
		assert.Equal(t, StatusOffline, StatusMessage(err))
	})

	t.Run("unreachable_is_transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewHTTPClientWithHTTP(url, "user-1", nil, nil)
		_, err := c.Draw(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransport)
		assert.True(t, IsTransportError(err))
	})

	t.Run("deadline_is_transport", func(t *testing.T) {
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointPull, func(ctx *gin.Context) {
				select {
				case <-ctx.Request.Context().Done():
				case <-time.After(time.Second):
				}
			})
		})

		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := c.Draw(tctx)
		require.Error(t, err)
		assert.True(t, IsTransportError(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestHTTPClient_Balance(t *testing.T) {
	c := newFakeServer(t, func(r *gin.Engine) {
		r.POST(EndpointFunds, func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"astrum": 480, "astrai": 2, "flux": 3060})
		})
	})

	b, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Balance{Astrum: 480, Astrai: 2, Flux: 3060}, b)
	assert.True(t, b.CanPull())
}

func TestHTTPClient_Quests(t *testing.T) {
	ctx := context.Background()

	t.Run("list_mode", func(t *testing.T) {
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointDailies, func(ctx *gin.Context) {
				var req dailiesRequest
				require.NoError(t, ctx.ShouldBindJSON(&req))
				assert.True(t, req.Info)
				assert.Equal(t, listModeQuestID, req.ID)

				ctx.JSON(http.StatusOK, gin.H{"dailies": []gin.H{
					{"id": 0, "claimable": true, "claimed": false},
					{"id": 1, "claimable": false, "claimed": true},
				}})
			})
		})

		states, err := c.Quests(ctx)
		require.NoError(t, err)
		require.Len(t, states, 2)
		assert.Equal(t, Ready, states[0].State())
		assert.Equal(t, Claimed, states[1].State())
	})

	t.Run("missing_dailies", func(t *testing.T) {
		c := newFakeServer(t, func(r *gin.Engine) {
			r.POST(EndpointDailies, func(ctx *gin.Context) {
				ctx.JSON(http.StatusOK, gin.H{})
			})
		})

		_, err := c.Quests(ctx)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestHTTPClient_ClaimQuest(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		status    int
		body      any
		want      []Reward
		rejected  bool
		transport bool
	}{
		{
			name:   "rewards",
			status: http.StatusOK,
			body:   gin.H{"rewards": []gin.H{{"reward_type": "Astrum", "amount": 160}}},
			want:   []Reward{{Kind: RewardAstrum, Amount: 160}},
		},
		{name: "empty_body", status: http.StatusOK},
		{name: "forbidden", status: http.StatusForbidden, rejected: true},
		{name: "conflict", status: http.StatusConflict, rejected: true},
		{name: "server_error", status: http.StatusBadGateway, transport: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeServer(t, func(r *gin.Engine) {
				r.POST(EndpointDailies, func(ctx *gin.Context) {
					var req dailiesRequest
					require.NoError(t, ctx.ShouldBindJSON(&req))
					assert.False(t, req.Info)
					assert.Equal(t, 1, req.ID)

					if tt.body == nil {
						ctx.Status(tt.status)
						return
					}
					ctx.JSON(tt.status, tt.body)
				})
			})

			rewards, err := c.ClaimQuest(ctx, 1)
			switch {
			case tt.rejected:
				assert.True(t, IsRejected(err))
				assert.ErrorIs(t, err, ErrClaimRefused)
			case tt.transport:
				assert.True(t, IsTransportError(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, rewards)
			}
		})
	}
}

func TestHTTPClient_Timers(t *testing.T) {
	c := newFakeServer(t, func(r *gin.Engine) {
		r.POST(EndpointStartTimer, func(ctx *gin.Context) {
			var req timerRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			ctx.JSON(http.StatusOK, gin.H{"status": TimerStatusTiming, "category": req.Category})
		})
		r.POST(EndpointStopTimer, func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": TimerStatusStopped, "category": "ANode", "reward": 42})
		})
	})

	started, err := c.StartTimer(context.Background(), CategoryANode)
	require.NoError(t, err)
	assert.Equal(t, TimerStatusTiming, started.Status)
	assert.Equal(t, CategoryANode, started.Category)
	assert.Nil(t, started.Reward)

	stopped, err := c.StopTimer(context.Background(), CategoryANode)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stopped.Granted())
}

func TestHTTPClient_Vouchers(t *testing.T) {
	ctx := context.Background()

	c := newFakeServer(t, func(r *gin.Engine) {
		r.POST(EndpointVouchers, func(ctx *gin.Context) {
			var req voucherRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			switch {
			case req.Store:
				ctx.JSON(http.StatusOK, []gin.H{{"id": 7, "name": "Movie night", "cost": 500}})
			case req.FilterByID == 99:
				ctx.Status(http.StatusNotFound)
			default:
				ctx.JSON(http.StatusOK, []gin.H{{"id": 7, "uuid": "a-b", "name": "Movie night"}})
			}
		})
		r.POST(EndpointPurchase, func(ctx *gin.Context) {
			var req purchaseRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			if req.Amount > 1 {
				ctx.String(http.StatusForbidden, "Insufficient Flux")
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"result": "Purchased 1"})
		})
		r.POST(EndpointConsume, func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "Voucher consumed"})
		})
		r.POST(EndpointCreate, func(ctx *gin.Context) {
			var req createRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			if req.Voucher.Name == "" {
				ctx.Status(http.StatusLengthRequired)
				return
			}
			ctx.Status(http.StatusOK)
		})
		r.POST(EndpointRemoveNewTag, func(ctx *gin.Context) {
			body, _ := io.ReadAll(ctx.Request.Body)
			assert.Equal(t, `"a-b"`, string(body))
			ctx.Status(http.StatusOK)
		})
	})

	store, err := c.StoreTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, store, 1)
	assert.Equal(t, uint64(500), store[0].Cost)

	owned, err := c.Vouchers(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "a-b", owned[0].UUID)

	_, err = c.Vouchers(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	msg, err := c.Purchase(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, "Purchased 1", msg)

	_, err = c.Purchase(ctx, 7, 3)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, IsRejected(err))
	assert.Equal(t, "Insufficient Flux", StatusMessage(err))

	status, err := c.Consume(ctx, "a-b")
	require.NoError(t, err)
	assert.Equal(t, "Voucher consumed", status)

	require.NoError(t, c.CreateTemplate(ctx, VoucherTemplate{ID: 8, Cost: 1, Name: "Nap"}))
	err = c.CreateTemplate(ctx, VoucherTemplate{ID: 9, Cost: 1})
	assert.True(t, IsRejected(err))
	var ge *GachaError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, ErrCodeInvalidVoucher, ge.Code)

	assert.NoError(t, c.MarkSeen(ctx, "a-b"))
}
