package handler

import (
	"github.com/gestion/backend/internal/interfaces/http/router"
)

// SettlementRoutes creates the route group for the settlement subsystem:
// parties, documents, payments and the allocation engine.
func SettlementRoutes(
	party *PartyHandler,
	document *DocumentHandler,
	allocation *AllocationHandler,
	statement *StatementHandler,
) *router.DomainGroup {
	group := router.NewDomainGroup("settlement", "/settlement")

	// Party registry
	group.POST("/parties", party.CreateParty)
	group.GET("/parties", party.ListParties)
	group.GET("/parties/:id", party.GetParty)

	// Party account views
	group.GET("/parties/:id/statement", statement.GetStatement)
	group.GET("/parties/:id/pending", statement.GetPending)

	// Document posting
	group.POST("/documents/debts", document.RegisterDebt)
	group.POST("/documents/adjustments", document.RegisterAdjustment)
	group.GET("/documents/:id", document.GetDocument)
	group.GET("/documents/:id/detail", document.GetDocumentDetail)
	group.POST("/documents/:id/void", document.VoidDocument)

	// Payments and the allocation engine
	group.POST("/payments", allocation.CreatePayment)
	group.POST("/documents/:id/allocations", allocation.ImputeExisting)
	group.PUT("/documents/:id/allocations", allocation.ModifyAllocations)
	group.DELETE("/allocations/:id", allocation.ReverseAllocation)

	return group
}

// SystemRoutes creates the route group for system endpoints
func SystemRoutes(system *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")

	group.GET("/ping", system.Ping)
	group.GET("/info", system.GetSystemInfo)

	return group
}
