package main

import (
	"gorm.io/datatypes"

	"workflows/internal/domain"
	"workflows/internal/registry"
)

// registerStates wires the built-in order fulfillment workflow. Deployments
// embedding the engine register their own definitions instead.
func registerStates(reg *registry.Registry) {
	reg.MustRegister("order.receive", receiveOrder{})
	reg.MustRegister("order.prepare", prepareOrder{})
	reg.MustRegister("order.invoice", issueInvoice{})
	reg.MustRegister("order.deliver", deliverOrder{})
}

type receiveOrder struct{ registry.BaseState }

func (receiveOrder) Name() string { return "Receive order" }
func (receiveOrder) Slug() string { return "receive-order" }
func (receiveOrder) DueTime() int { return 60 }
func (receiveOrder) Swimlanes() []string {
	return []string{"intake"}
}
func (receiveOrder) Next(datatypes.JSON, *domain.Task) []registry.Successor {
	return []registry.Successor{
		registry.To("order.prepare"),
		registry.To("order.invoice"),
	}
}

type prepareOrder struct{ registry.BaseState }

func (prepareOrder) Name() string { return "Prepare order" }
func (prepareOrder) Slug() string { return "prepare-order" }
func (prepareOrder) Swimlanes() []string {
	return []string{"warehouse"}
}
func (prepareOrder) Next(datatypes.JSON, *domain.Task) []registry.Successor {
	return []registry.Successor{registry.To("order.deliver")}
}

type issueInvoice struct{ registry.BaseState }

func (issueInvoice) Name() string { return "Issue invoice" }
func (issueInvoice) Slug() string { return "issue-invoice" }
func (issueInvoice) Swimlanes() []string {
	return []string{"billing"}
}
func (issueInvoice) Next(datatypes.JSON, *domain.Task) []registry.Successor {
	return []registry.Successor{registry.To("order.deliver")}
}

type deliverOrder struct{ registry.BaseState }

func (deliverOrder) Name() string  { return "Deliver order" }
func (deliverOrder) Slug() string  { return "deliver-order" }
func (deliverOrder) IsFinal() bool { return true }
func (deliverOrder) Swimlanes() []string {
	return []string{"logistics"}
}

// Delivery waits for both the prepared goods and the invoice.
func (deliverOrder) Required() []string {
	return []string{"order.prepare", "order.invoice"}
}
