package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"stars-shop/internal/logger"
	"stars-shop/internal/models"
	"stars-shop/internal/payments"
	"stars-shop/internal/payments/stub"
	"stars-shop/internal/shop"
	"stars-shop/internal/util"
)

var stubPageTmpl = template.Must(template.New("stub").Parse(`<!doctype html><html><head><meta charset="utf-8"><title>Stub Pay</title></head><body>
<h2>Payment (test provider)</h2>
<p>Invoice: {{.Invoice}}</p>
<p>Amount: {{.Amount}} ⭐</p>
<button onclick="send('paid')">Pay (paid)</button>
<button onclick="send('cancelled')">Cancel (cancelled)</button>
<pre id="out"></pre>
<script>
async function send(status){
  const body = new URLSearchParams({invoice: {{.Invoice}}, sig: {{.Sig}}, status});
  const res = await fetch("/pay/stub/confirm", {method: "POST", body});
  document.getElementById("out").textContent = await res.text();
}
</script>
</body></html>`))

// stubPage is the checkout page the stub provider links to.
func (s *Server) stubPage(w http.ResponseWriter, r *http.Request) {
	if s.stub == nil {
		http.NotFound(w, r)
		return
	}
	invoice := r.URL.Query().Get("invoice")
	sig := r.URL.Query().Get("sig")
	if invoice == "" {
		http.Error(w, "invoice required", http.StatusBadRequest)
		return
	}
	if !s.stub.Verify(invoice, sig) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	p, err := s.shop.Status(r.Context(), invoice)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to load payment")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = stubPageTmpl.Execute(w, map[string]any{"Invoice": invoice, "Sig": sig, "Amount": p.Amount})
}

// stubConfirm plays the provider's side of the stub checkout: "paid" goes
// through the same completion path as a Telegram successful_payment.
func (s *Server) stubConfirm(w http.ResponseWriter, r *http.Request) {
	if s.stub == nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	invoice := r.PostFormValue("invoice")
	status := r.PostFormValue("status")
	if !s.stub.Verify(invoice, r.PostFormValue("sig")) {
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	}

	ctx := r.Context()
	log := logger.FromCtx(ctx, s.log)

	p, err := s.shop.Status(ctx, invoice)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to load payment")
		return
	}

	switch status {
	case "paid":
		// same rule as pre-checkout: a failed or refunded payment cannot be paid again
		if p.Status != models.StatusPending && p.Status != models.StatusPaid {
			s.writeServiceError(w, r, shop.ErrNotPending, "Failed to complete payment")
			return
		}
		payload, err := payments.EncodePayload(payments.Payload{PaymentID: p.ID, UserID: p.UserID})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		completed, applied, err := s.shop.CompletePayment(ctx, shop.Completion{
			Payload:     payload,
			ChargeID:    stub.ChargeID(p.ID),
			TotalAmount: p.Amount,
		})
		if err != nil {
			s.writeServiceError(w, r, err, "Failed to complete payment")
			return
		}
		if applied {
			if err := s.bot.NotifyPaid(completed); err != nil {
				log.Warn("notify user", zap.String("payment_id", p.ID), zap.Error(err))
			}
		}
		p = completed
	case "cancelled":
		p, err = s.shop.CancelPayment(ctx, invoice)
		if err != nil {
			s.writeServiceError(w, r, err, "Failed to cancel payment")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, `status must be "paid" or "cancelled"`)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"payment_id": p.ID,
		"status":     p.Status,
		"ts":         util.NowISO(),
	})
}
