package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the storefront's Prometheus collectors.
type Metrics struct {
	invoicesCreated   *prometheus.CounterVec
	invoiceFailures   prometheus.Counter
	paymentsCompleted prometheus.Counter
	unknownPayments   prometheus.Counter
	orphanedCharges   prometheus.Counter
	preCheckouts      *prometheus.CounterVec
	refunds           *prometheus.CounterVec
	starsReceived     prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		invoicesCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_invoices_created_total",
			Help: "Invoices issued, by payment provider",
		}, []string{"provider"}),
		invoiceFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_invoice_failures_total",
			Help: "Invoice links the provider failed to create",
		}),
		paymentsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_payments_completed_total",
			Help: "Payments moved from pending to paid",
		}),
		unknownPayments: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_unknown_payment_completions_total",
			Help: "successful_payment updates referencing no known payment",
		}),
		orphanedCharges: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_orphaned_charges_total",
			Help: "successful_payment charges for payments that were no longer pending",
		}),
		preCheckouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_pre_checkout_total",
			Help: "Pre-checkout queries answered, by result",
		}, []string{"result"}),
		refunds: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_refunds_total",
			Help: "Refund attempts, by result",
		}, []string{"result"}),
		starsReceived: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_stars_received_total",
			Help: "Telegram Stars received in completed payments",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

func (m *Metrics) InvoiceCreated(provider string) {
	m.invoicesCreated.WithLabelValues(provider).Inc()
}

func (m *Metrics) InvoiceFailed() {
	m.invoiceFailures.Inc()
}

func (m *Metrics) PaymentCompleted(stars int64) {
	m.paymentsCompleted.Inc()
	if stars > 0 {
		m.starsReceived.Add(float64(stars))
	}
}

func (m *Metrics) UnknownPayment() {
	m.unknownPayments.Inc()
}

// OrphanedCharge records a charge that reached a payment already settled
// with another charge; it needs a manual refund.
func (m *Metrics) OrphanedCharge() {
	m.orphanedCharges.Inc()
}

// PreCheckout records an answered pre_checkout_query; result is "ok" or "rejected".
func (m *Metrics) PreCheckout(result string) {
	m.preCheckouts.WithLabelValues(result).Inc()
}

// Refund records a refund attempt; result is "ok", "rejected" or "error".
func (m *Metrics) Refund(result string) {
	m.refunds.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, fmt.Sprint(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
