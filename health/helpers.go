package health

import (
	"slices"
	"strings"
	"time"
)

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StatusHealthy, message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StatusUnhealthy, message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StatusDegraded, message)
}

// Aggregate combines sub-statuses into one. The worst sub-status wins:
// any unhealthy makes the aggregate unhealthy, otherwise any degraded makes
// it degraded. Sub-statuses are kept sorted by component.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no components")
	}

	sorted := slices.Clone(subStatuses)
	slices.SortFunc(sorted, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})

	var unhealthy, degraded []string
	for _, sub := range sorted {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		}
	}

	var status Status
	switch {
	case len(unhealthy) > 0:
		status = NewUnhealthy(component, "unhealthy: "+strings.Join(unhealthy, ", "))
	case len(degraded) > 0:
		status = NewDegraded(component, "degraded: "+strings.Join(degraded, ", "))
	default:
		status = NewHealthy(component, "all components healthy")
	}

	status.SubStatuses = sorted
	return status
}
