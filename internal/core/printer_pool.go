package core

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrPrinterNotFound      = errors.New("printer not found")
	ErrPrinterAlreadyExists = errors.New("printer already exists")
	ErrInvalidEfficiency    = errors.New("printer efficiency must be between 0 and 100")
)

const defaultEfficiencyMultiplier = 1.0

func DefaultPrinters() []Printer {
	return []Printer{
		{ID: 1, Name: "LaserJet Pro M404", Status: PrinterStatusOnline, TotalJobsProcessed: 124, Efficiency: 98},
		{ID: 2, Name: "HP Color LaserJet", Status: PrinterStatusOnline, TotalJobsProcessed: 89, Efficiency: 95},
		{ID: 3, Name: "Canon ImageRunner", Status: PrinterStatusOnline, TotalJobsProcessed: 210, Efficiency: 92},
		{ID: 4, Name: "Brother HL-L2350", Status: PrinterStatusMaintenance, TotalJobsProcessed: 45, Efficiency: 88},
		{ID: 5, Name: "Epson EcoTank", Status: PrinterStatusOnline, TotalJobsProcessed: 156, Efficiency: 96},
	}
}

// PrinterPool is the fixed set of printers. It does no locking; the Engine
// serializes every access.
type PrinterPool struct {
	printers map[int64]*Printer
	order    []int64
}

func NewPrinterPool(printers []Printer) (*PrinterPool, error) {
	pool := &PrinterPool{printers: make(map[int64]*Printer, len(printers))}
	for _, p := range printers {
		if _, exists := pool.printers[p.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrPrinterAlreadyExists, p.ID)
		}
		if p.Efficiency < 0 || p.Efficiency > 100 {
			return nil, fmt.Errorf("printer %d: %w", p.ID, ErrInvalidEfficiency)
		}
		if p.Status == "" {
			p.Status = PrinterStatusOnline
		}
		printer := p
		pool.printers[p.ID] = &printer
		pool.order = append(pool.order, p.ID)
	}
	sort.Slice(pool.order, func(i, j int) bool { return pool.order[i] < pool.order[j] })
	return pool, nil
}

func (pp *PrinterPool) Len() int { return len(pp.order) }

func (pp *PrinterPool) Get(id int64) (Printer, error) {
	p, exists := pp.printers[id]
	if !exists {
		return Printer{}, ErrPrinterNotFound
	}
	return *p, nil
}

func (pp *PrinterPool) List() []Printer {
	out := make([]Printer, 0, len(pp.order))
	for _, id := range pp.order {
		out = append(out, *pp.printers[id])
	}
	return out
}

// Toggle flips Online to Offline and anything else to Online. Jobs already
// bound to the printer are left alone.
func (pp *PrinterPool) Toggle(id int64) (oldStatus, newStatus PrinterStatus, err error) {
	p, exists := pp.printers[id]
	if !exists {
		return "", "", ErrPrinterNotFound
	}
	oldStatus = p.Status
	if p.Status == PrinterStatusOnline {
		p.Status = PrinterStatusOffline
	} else {
		p.Status = PrinterStatusOnline
	}
	return oldStatus, p.Status, nil
}

// EfficiencyMultiplier scales progress increments; a missing printer counts
// as full speed.
func (pp *PrinterPool) EfficiencyMultiplier(id int64) float64 {
	p, exists := pp.printers[id]
	if !exists {
		return defaultEfficiencyMultiplier
	}
	return float64(p.Efficiency) / 100
}

func (pp *PrinterPool) CreditCompletion(id int64) {
	if p, exists := pp.printers[id]; exists {
		p.TotalJobsProcessed++
	}
}

// Assignable returns, in id order, the Online printers not present in busy.
func (pp *PrinterPool) Assignable(busy map[int64]bool) []Printer {
	var out []Printer
	for _, id := range pp.order {
		p := pp.printers[id]
		if p.Status == PrinterStatusOnline && !busy[id] {
			out = append(out, *p)
		}
	}
	return out
}

func (pp *PrinterPool) FirstAssignable(busy map[int64]bool) (Printer, bool) {
	for _, id := range pp.order {
		p := pp.printers[id]
		if p.Status == PrinterStatusOnline && !busy[id] {
			return *p, true
		}
	}
	return Printer{}, false
}
