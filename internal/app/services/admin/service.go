// Package admin aggregates platform analytics and host health for the
// operations endpoints.
package admin

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/brickvault/platform/internal/app/domain/investment"
	"github.com/brickvault/platform/internal/app/domain/kyc"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// Service serves admin analytics.
type Service struct {
	users       storage.UserStore
	investors   storage.InvestorStore
	clients     storage.ClientStore
	properties  storage.PropertyStore
	investments storage.InvestmentStore
	kyc         storage.KYCStore
	log         *logger.Logger
}

// New constructs an admin service.
func New(users storage.UserStore, investors storage.InvestorStore, clients storage.ClientStore, properties storage.PropertyStore, investments storage.InvestmentStore, kycStore storage.KYCStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	return &Service{
		users:       users,
		investors:   investors,
		clients:     clients,
		properties:  properties,
		investments: investments,
		kyc:         kycStore,
		log:         log,
	}
}

// Overview is the platform-wide analytics snapshot.
type Overview struct {
	Users              int
	Investors          int
	Clients            int
	PropertiesByStatus map[string]int
	TotalFundingTarget float64
	TotalFundedAmount  float64
	InvestmentVolume   float64
	InvestmentsByState map[string]int
	KYCFunnel          map[string]int
	GeneratedAt        time.Time
}

// Overview aggregates counts and volumes across the platform.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	out := Overview{
		PropertiesByStatus: make(map[string]int),
		InvestmentsByState: make(map[string]int),
		KYCFunnel:          make(map[string]int),
		GeneratedAt:        time.Now().UTC(),
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return Overview{}, err
	}
	out.Users = len(users)

	investors, err := s.investors.ListInvestors(ctx)
	if err != nil {
		return Overview{}, err
	}
	out.Investors = len(investors)

	clients, err := s.clients.ListClients(ctx)
	if err != nil {
		return Overview{}, err
	}
	out.Clients = len(clients)

	properties, err := s.properties.ListProperties(ctx, "")
	if err != nil {
		return Overview{}, err
	}
	for _, p := range properties {
		out.PropertiesByStatus[string(p.Status)]++
		out.TotalFundingTarget += p.FundingTarget
		out.TotalFundedAmount += p.FundedAmount
	}

	investments, err := s.investments.ListInvestments(ctx, "")
	if err != nil {
		return Overview{}, err
	}
	for _, inv := range investments {
		out.InvestmentsByState[string(inv.Status)]++
		if inv.Status == investment.StatusCompleted {
			out.InvestmentVolume += inv.Amount
		}
	}

	verifications, err := s.kyc.ListVerifications(ctx, "")
	if err != nil {
		return Overview{}, err
	}
	for _, v := range verifications {
		out.KYCFunnel[string(v.Status)]++
	}
	// The funnel always reports every stage.
	for _, st := range []kyc.Status{kyc.StatusPending, kyc.StatusApproved, kyc.StatusRejected, kyc.StatusExpired} {
		if _, ok := out.KYCFunnel[string(st)]; !ok {
			out.KYCFunnel[string(st)] = 0
		}
	}

	return out, nil
}

// SystemHealth is a host resource snapshot.
type SystemHealth struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  uint64
	MemoryTotalMB uint64
	UptimeSeconds uint64
	Goroutines    int
	CollectedAt   time.Time
}

// Health samples host CPU, memory and uptime.
func (s *Service) Health(ctx context.Context) (SystemHealth, error) {
	out := SystemHealth{
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().UTC(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		out.CPUPercent = percents[0]
	} else if err != nil {
		s.log.WithError(err).Warn("cpu sample failed")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemoryPercent = vm.UsedPercent
		out.MemoryUsedMB = vm.Used / (1 << 20)
		out.MemoryTotalMB = vm.Total / (1 << 20)
	} else {
		s.log.WithError(err).Warn("memory sample failed")
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		out.UptimeSeconds = uptime
	} else {
		s.log.WithError(err).Warn("uptime sample failed")
	}

	return out, nil
}
