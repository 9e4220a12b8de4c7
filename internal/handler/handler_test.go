package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"go-marketplace/internal/gateway"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/internal/service"
	"go-marketplace/internal/ws"
	"go-marketplace/pkg/jwt"
	"go-marketplace/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, req service.SignupRequest) (*service.AuthResponse, error) {
	args := m.Called(req)
	r, _ := args.Get(0).(*service.AuthResponse)
	return r, args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, req service.LoginRequest) (*service.AuthResponse, error) {
	args := m.Called(req)
	r, _ := args.Get(0).(*service.AuthResponse)
	return r, args.Error(1)
}

func (m *MockAuthService) GoogleLogin(ctx context.Context, req service.GoogleLoginRequest) (*service.AuthResponse, error) {
	args := m.Called(req)
	r, _ := args.Get(0).(*service.AuthResponse)
	return r, args.Error(1)
}

func (m *MockAuthService) Logout(userID string) error {
	return m.Called(userID).Error(0)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID string, req service.ChangePasswordRequest) (*service.AuthResponse, error) {
	args := m.Called(userID, req)
	r, _ := args.Get(0).(*service.AuthResponse)
	return r, args.Error(1)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, req service.RequestResetRequest) (*service.ResetRequestResult, error) {
	args := m.Called(req)
	r, _ := args.Get(0).(*service.ResetRequestResult)
	return r, args.Error(1)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, req service.ResetPasswordRequest) error {
	return m.Called(req).Error(0)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, buyer service.Identity, req service.CreateTransactionRequest) (*service.CreateTransactionResult, error) {
	args := m.Called(buyer, req)
	r, _ := args.Get(0).(*service.CreateTransactionResult)
	return r, args.Error(1)
}

func (m *MockTransactionService) CreatePaymentSession(ctx context.Context, caller service.Identity, id string) (*service.CreateTransactionResult, error) {
	args := m.Called(caller, id)
	r, _ := args.Get(0).(*service.CreateTransactionResult)
	return r, args.Error(1)
}

func (m *MockTransactionService) GetTransaction(caller service.Identity, id string) (*model.Transaction, error) {
	args := m.Called(caller, id)
	tx, _ := args.Get(0).(*model.Transaction)
	return tx, args.Error(1)
}

func (m *MockTransactionService) ListMyTransactions(caller service.Identity, party string, page, limit int) (*service.TransactionPage, error) {
	args := m.Called(caller, party, page, limit)
	p, _ := args.Get(0).(*service.TransactionPage)
	return p, args.Error(1)
}

func (m *MockTransactionService) UpdateStatus(ctx context.Context, caller service.Identity, id string, req service.UpdateStatusRequest) (*model.Transaction, error) {
	args := m.Called(caller, id, req)
	tx, _ := args.Get(0).(*model.Transaction)
	return tx, args.Error(1)
}

func (m *MockTransactionService) HandleNotification(ctx context.Context, n gateway.Notification, raw []byte) (*model.Transaction, error) {
	args := m.Called(n, raw)
	tx, _ := args.Get(0).(*model.Transaction)
	return tx, args.Error(1)
}

func (m *MockTransactionService) SyncPaymentStatus(ctx context.Context, caller service.Identity, id string) (*model.Transaction, error) {
	args := m.Called(caller, id)
	tx, _ := args.Get(0).(*model.Transaction)
	return tx, args.Error(1)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) CreateProduct(ctx context.Context, owner service.Identity, req service.CreateProductRequest, image *service.Upload) (*model.Product, error) {
	args := m.Called(owner, req, image)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

func (m *MockProductService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(id)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

func (m *MockProductService) ListProducts(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error) {
	args := m.Called(q)
	p, _ := args.Get(0).(*service.ProductPage)
	return p, args.Error(1)
}

func (m *MockProductService) UpdateProduct(ctx context.Context, caller service.Identity, id string, req service.UpdateProductRequest, image *service.Upload) (*model.Product, error) {
	args := m.Called(caller, id, req, image)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

func (m *MockProductService) DeleteProduct(ctx context.Context, caller service.Identity, id string) error {
	return m.Called(caller, id).Error(0)
}

// stubUserRepo only answers FindByID; other methods panic through the nil embed.
type stubUserRepo struct {
	repository.UserRepository
	users map[string]*model.User
}

func (r *stubUserRepo) FindByID(id string) (*model.User, error) {
	return r.users[id], nil
}

type testEnv struct {
	app    *fiber.App
	auth     *MockAuthService
	txs      *MockTransactionService
	products *MockProductService
	tokens   *jwt.Manager
	users    *stubUserRepo
	ping     error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		auth:     new(MockAuthService),
		txs:      new(MockTransactionService),
		products: new(MockProductService),
		tokens:   jwt.NewManager("handler-secret", time.Hour),
		users:    &stubUserRepo{users: map[string]*model.User{}},
	}
	log := zap.NewNop()

	router := &Router{
		Auth:        NewAuthHandler(env.auth, log),
		User:        NewUserHandler(nil, log),
		Product:     NewProductHandler(env.products, log),
		Transaction: NewTransactionHandler(env.txs, log),
		Payment:     NewPaymentHandler(env.txs, log),
		Chat:        NewChatHandler(nil, log),
		Dashboard:   NewDashboardHandler(nil, log),
		WS:          NewWSHandler(ws.NewHub(zap.NewNop())),
		UserRepo:    env.users,
		Tokens:      env.tokens,
		Ping:        func() error { return env.ping },
		RateLimit:   2,
		RateWindow:  time.Minute,
	}

	env.app = fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler})
	router.Register(env.app)
	return env
}

// login stores a session for a user and returns its bearer token.
func (e *testEnv) login(t *testing.T, id, email string) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(id, email, model.RoleUser)
	require.NoError(t, err)
	e.users.users[id] = &model.User{BaseModel: model.BaseModel{ID: id}, Email: email, Role: model.RoleUser, AccessToken: &token}
	return token
}

func (e *testEnv) do(t *testing.T, method, target, token string, body interface{}) (*http.Response, response.Envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	var env response.Envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func TestHandleError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantLogged bool
	}{
		{"validation", &service.ValidationError{}, fiber.StatusBadRequest, false},
		{"not found", service.ErrTransactionNotFound, fiber.StatusNotFound, false},
		{"unauthorized", service.ErrInvalidCredentials, fiber.StatusUnauthorized, false},
		{"forbidden", service.ErrOnlyBuyerCancel, fiber.StatusForbidden, false},
		{"conflict", service.ErrConcurrentUpdate, fiber.StatusConflict, false},
		{"business rule", service.ErrCannotBuyOwnProduct, fiber.StatusBadRequest, false},
		{"upstream", errors.Join(service.ErrUpstream, errors.New("smtp")), fiber.StatusInternalServerError, true},
		{"unknown", errors.New("db gone"), fiber.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			log := zap.New(core)
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return handleError(c, log, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantLogged {
				require.Equal(t, 1, logs.Len())
				assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestSignup_ResponseCarriesNoPassword(t *testing.T) {
	env := newTestEnv(t)
	hash := "$2a$10$secret-hash"
	user := &model.User{BaseModel: model.BaseModel{ID: "u1"}, Email: "a@x.com", Username: "ana", Role: model.RoleUser, Password: &hash}
	env.auth.On("Signup", mock.Anything).Return(&service.AuthResponse{Token: "tok", User: user.ToResponse()}, nil)

	req := httptest.NewRequest("POST", "/signup", strings.NewReader(`{"username":"ana","email":"a@x.com","password":"Secret1!"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), hash)
	assert.Contains(t, string(raw), `"status":"success"`)
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.auth.On("Login", mock.Anything).Return(nil, service.ErrInvalidCredentials)

	for i := 0; i < 2; i++ {
		resp, body := env.do(t, "POST", "/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, response.StatusError, body.Status)
	}

	resp, body := env.do(t, "POST", "/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, response.StatusError, body.Status)
}

func TestRequestPasswordReset_EchoesTokenOnlyWhenPresent(t *testing.T) {
	env := newTestEnv(t)
	env.auth.On("RequestPasswordReset", service.RequestResetRequest{Email: "a@x.com"}).
		Return(&service.ResetRequestResult{Message: service.ResetRequestedMessage}, nil)

	resp, body := env.do(t, "POST", "/request-password-reset", "", map[string]string{"email": "a@x.com"})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, service.ResetRequestedMessage, body.Message)
	assert.Nil(t, body.Data)
}

func TestCreateTransaction_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "POST", "/create-transaction", "", map[string]interface{}{"product_id": "P1"})

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.StatusError, body.Status)
	env.txs.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
}

func TestCreateTransaction_PaymentErrorStillCreated(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "b1", "b@x.com")
	caller := service.Identity{UserID: "b1", Email: "b@x.com", Role: model.RoleUser}
	total := int64(200)
	env.txs.On("CreateTransaction", caller, service.CreateTransactionRequest{ProductID: "P1", Quantity: 2, TotalPrice: &total}).
		Return(&service.CreateTransactionResult{
			Transaction:  &model.Transaction{TransactionID: "TR1", BuyerEmail: "b@x.com", PaymentStatus: model.StatusPending},
			PaymentError: "upstream service failure: payment gateway: timeout",
		}, nil)

	resp, body := env.do(t, "POST", "/create-transaction", token, map[string]interface{}{
		"product_id": "P1", "quantity": 2, "total_price": 200,
	})

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, data["payment_session"])
	assert.NotEmpty(t, data["payment_error"])
	tx := data["transaction"].(map[string]interface{})
	assert.Equal(t, "b@x.com", tx["email_buyer"])
}

func TestUpdateStatus_MapsServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"forbidden", service.ErrOnlyBuyerCancel, fiber.StatusForbidden},
		{"not pending", service.ErrNotPending, fiber.StatusBadRequest},
		{"concurrent", service.ErrConcurrentUpdate, fiber.StatusConflict},
		{"missing", service.ErrTransactionNotFound, fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			token := env.login(t, "s1", "s@x.com")
			env.txs.On("UpdateStatus", mock.Anything, "TR1", mock.Anything).Return(nil, tt.err)

			resp, body := env.do(t, "PUT", "/transaction/TR1/status", token, map[string]string{"payment_status": "cancelled"})

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.err.Error(), body.Message)
		})
	}
}

func TestMyTransactions_DefaultsToBothSides(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "b1", "b@x.com")
	env.txs.On("ListMyTransactions", mock.Anything, repository.PartyAny, 1, 0).
		Return(&service.TransactionPage{Transactions: []model.Transaction{}}, nil)
	env.txs.On("ListMyTransactions", mock.Anything, repository.PartySeller, 2, 5).
		Return(&service.TransactionPage{Transactions: []model.Transaction{}}, nil)

	resp, _ := env.do(t, "GET", "/my-transactions", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, "GET", "/my-transactions?as=seller&page=2&limit=5", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	env.txs.AssertExpectations(t)
}

func TestPaymentNotification(t *testing.T) {
	payload := `{"order_id":"TR123-1700000000","transaction_status":"settlement","status_code":"200","gross_amount":"200.00","signature_key":"abc"}`

	t.Run("applied", func(t *testing.T) {
		env := newTestEnv(t)
		env.txs.On("HandleNotification", mock.MatchedBy(func(n gateway.Notification) bool {
			return n.OrderID == "TR123-1700000000" && n.TransactionStatus == "settlement" && n.GrossAmount == "200.00"
		}), []byte(payload)).Return(&model.Transaction{TransactionID: "TR123", PaymentStatus: "settlement"}, nil)

		resp, body := env.do(t, "POST", "/payment/notification", "", payload)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]interface{}{"transaction_id": "TR123", "payment_status": "settlement"}, body.Data)
	})

	t.Run("bad signature", func(t *testing.T) {
		env := newTestEnv(t)
		env.txs.On("HandleNotification", mock.Anything, mock.Anything).Return(nil, service.ErrInvalidSignature)

		resp, _ := env.do(t, "POST", "/payment/notification", "", payload)

		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)

		resp, _ := env.do(t, "POST", "/payment/notification", "", `{"order_id":`)

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		env.txs.AssertNotCalled(t, "HandleNotification", mock.Anything, mock.Anything)
	})
}

func TestUsers_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "u1", "u@x.com")

	resp, _ := env.do(t, "GET", "/users", token, nil)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, response.StatusSuccess, body.Status)

	env.ping = errors.New("connection refused")
	resp, _ = env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestWS_RejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/ws", nil))

	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestUnknownRoute_UsesEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "GET", "/nope", "", nil)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, response.StatusError, body.Status)
}

// imageRequest builds a multipart body with a blank name field and a small PNG.
func imageRequest(t *testing.T, method, target, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "   "))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="camera.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestProductUpload_ScratchRemovedOnRejection(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		setup      func(env *testEnv, seen *string)
		wantStatus int
	}{
		{
			name:   "create fails validation",
			method: "POST",
			target: "/add-product",
			setup: func(env *testEnv, seen *string) {
				env.products.On("CreateProduct", mock.Anything, mock.Anything, mock.AnythingOfType("*service.Upload")).
					Run(func(args mock.Arguments) { *seen = args.Get(2).(*service.Upload).Path }).
					Return(nil, &service.ValidationError{})
			},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:   "update by non-owner",
			method: "PUT",
			target: "/product/P1",
			setup: func(env *testEnv, seen *string) {
				env.products.On("UpdateProduct", mock.Anything, "P1", mock.Anything, mock.AnythingOfType("*service.Upload")).
					Run(func(args mock.Arguments) { *seen = args.Get(3).(*service.Upload).Path }).
					Return(nil, service.ErrNotProductOwner)
			},
			wantStatus: fiber.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			token := env.login(t, "u1", "u@x.com")
			var seen string
			tt.setup(env, &seen)

			resp, err := env.app.Test(imageRequest(t, tt.method, tt.target, token))

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			require.NotEmpty(t, seen)
			_, statErr := os.Stat(seen)
			assert.True(t, os.IsNotExist(statErr), "scratch file %s left behind", seen)
		})
	}
}
