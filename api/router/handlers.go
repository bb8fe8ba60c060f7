package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/app"
)

const maxBodyBytes = 1 << 16

type handlers struct {
	svc app.Service
	mux *runtime.ServeMux
}

func (h handlers) subscribe(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	resp, err := h.svc.CreateSubscription(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, map[string]any{
		"success":        true,
		"message":        "Subscribed successfully",
		"subscriptionId": resp.SubscriptionID,
		"status":         string(resp.Status),
	})
}

func (h handlers) verify(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", app.ErrBadRequest, err))
		return
	}
	req := app.VerifyPaymentRequest{
		PaymentID:      stringField(body, "paymentId"),
		SubscriptionID: stringField(body, "subscriptionId"),
		Signature:      stringField(body, "signature"),
	}
	resp, err := h.svc.VerifyPayment(r.Context(), accountID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, map[string]any{
		"success":         true,
		"message":         "Payment verified successfully",
		"verified":        resp.Verified,
		"alreadyRecorded": resp.AlreadyRecorded,
	})
}

func (h handlers) unsubscribe(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	resp, err := h.svc.CancelSubscription(r.Context(), accountID)
	if errors.Is(err, app.ErrRefundWindowExpired) {
		// The cancellation took effect; answer 200 so clients do not retry it.
		h.write(w, r, map[string]any{
			"success":             true,
			"message":             "Subscription canceled. Refund period is over, no refunds will be provided.",
			"canceled":            resp.Canceled,
			"refunded":            false,
			"refundWindowExpired": true,
		})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, map[string]any{
		"success":             true,
		"message":             "Subscription canceled and refunded successfully",
		"canceled":            resp.Canceled,
		"refunded":            resp.Refunded,
		"refundWindowExpired": false,
	})
}

func (h handlers) subscription(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.GetSubscription(r.Context(), accountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, map[string]any{"success": true, "subscription": sub})
}

func (h handlers) listPayments(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	count, skip, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.svc.ListPayments(r.Context(), accountID, count, skip)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, map[string]any{
		"success":            true,
		"message":            "All payments fetched successfully",
		"allPayments":        resp.Items,
		"finalMonths":        resp.Report.ByMonth,
		"monthlySalesRecord": resp.Report.Counts,
	})
}

func (h handlers) ledger(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	count, skip, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.svc.LedgerReport(r.Context(), accountID, count, skip)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.write(w, r, map[string]any{
		"success":            true,
		"payments":           resp.Items,
		"finalMonths":        resp.Report.ByMonth,
		"monthlySalesRecord": resp.Report.Counts,
	})
}

func (h handlers) accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(AccountHeader)
	if id == "" {
		_, outbound := runtime.MarshalerForRequest(h.mux, r)
		runtime.HTTPError(r.Context(), h.mux, outbound, w, r, status.Error(codes.Unauthenticated, "Unauthorized, please login"))
		return "", false
	}
	return id, true
}

func (h handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := toStatus(err)
	if code := status.Code(st); code == codes.Internal || code == codes.Unknown {
		slog.Error("request failed", "path", r.URL.Path, "err", err)
	}
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	runtime.HTTPError(r.Context(), h.mux, outbound, w, r, st)
}

// write renders v through the mux marshaler as a protobuf Struct.
func (h handlers) write(w http.ResponseWriter, r *http.Request, v map[string]any) {
	msg, err := toStruct(v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	buf, err := outbound.Marshal(msg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", outbound.ContentType(msg))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf); err != nil {
		slog.Warn("failed to write response", "path", r.URL.Path, "err", err)
	}
}

// toStruct normalizes v through its JSON form so typed domain values
// (times, arrays, maps) become Struct-compatible.
func toStruct(v map[string]any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func readBody(r *http.Request) (*structpb.Struct, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{}
	if len(raw) == 0 {
		return msg, nil
	}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %v", err)
	}
	return msg, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// pageParams reads count and skip from the query string; absent means zero.
func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	parse := func(name string) (int, error) {
		raw := q.Get(name)
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", app.ErrBadRequest, name)
		}
		return n, nil
	}
	count, err := parse("count")
	if err != nil {
		return 0, 0, err
	}
	skip, err := parse("skip")
	if err != nil {
		return 0, 0, err
	}
	return count, skip, nil
}
