package database

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
)

// EnsureAdmin creates the configured admin account when no admin exists yet.
func EnsureAdmin(ctx context.Context, st *Store, username, password string) error {
	var count int64
	if err := st.DB().WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Username:     username,
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := st.Transaction(ctx, func(s *Session) error {
		s.Add(admin)
		return nil
	}); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	logging.Info().Str("username", username).Msg("created default admin user")
	return nil
}

var (
	seedCenters = []string{
		"North Campus", "South Campus", "East Campus", "West Campus", "HQ", "Remote",
		"Warehouse A", "Warehouse B", "Data Center 1", "Data Center 2", "Lab Alpha", "Lab Beta", "Field Ops",
	}
	seedAdmins = []string{
		"alice", "bob", "charlie", "diana", "eve", "frank", "grace", "heidi",
	}
	seedEndusers = []string{
		"John Smith", "Jane Doe", "Alex Johnson", "Maria Garcia", "Wei Chen", "Priya Patel",
		"Liam Brown", "Emma Wilson", "Noah Davis", "Olivia Martinez",
	}
	seedVendors = []string{"DELL", "HP", "LNV", "APL", "ACR", "ASUS"}
)

// SeedHardware inserts count random devices through the store, so each one
// gets its CREATE audit row. Serial numbers already present are skipped.
func SeedHardware(ctx context.Context, st *Store, count int, rng *rand.Rand) (int, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	created := 0
	for i := 0; i < count; i++ {
		hw := randomHardware(rng)

		var existing models.Hardware
		err := st.DB().WithContext(ctx).Where("serial_number = ?", hw.SerialNumber).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		if err := st.Transaction(ctx, func(s *Session) error {
			s.Add(hw)
			return nil
		}); err != nil {
			return created, fmt.Errorf("seed %s: %w", hw.SerialNumber, err)
		}
		created++
	}
	return created, nil
}

func randomHardware(rng *rand.Rand) *models.Hardware {
	model := models.HardwareModels[rng.Intn(len(models.HardwareModels))]
	status := models.HardwareStatuses[rng.Intn(len(models.HardwareStatuses))]
	vendor := seedVendors[rng.Intn(len(seedVendors))]

	hw := &models.Hardware{
		Hostname:     fmt.Sprintf("%s-%04d", strings.ToLower(hostnamePrefix(model)), rng.Intn(10000)),
		SerialNumber: fmt.Sprintf("%s%08d", vendor, rng.Intn(100000000)),
		Model:        model,
		Status:       status,
		IP:           fmt.Sprintf("10.%d.%d.%d", rng.Intn(256), rng.Intn(256), 1+rng.Intn(254)),
		MAC:          randomMAC(rng),
		Center:       seedCenters[rng.Intn(len(seedCenters))],
		Admin:        seedAdmins[rng.Intn(len(seedAdmins))],
		Ticket:       fmt.Sprintf("INC%06d", rng.Intn(1000000)),
		Missing:      rng.Intn(20) == 0,
	}
	if status != models.StatusInStock {
		hw.Enduser = seedEndusers[rng.Intn(len(seedEndusers))]
	}
	if status == models.StatusShipped || status == models.StatusCompleted {
		shipped := time.Now().UTC().Add(-time.Duration(rng.Intn(90*24)) * time.Hour)
		hw.ShippedAt = &shipped
	}
	return hw
}

func hostnamePrefix(m models.HardwareModel) string {
	switch m {
	case models.ModelNotebook:
		return "NB"
	case models.ModelMFF:
		return "MFF"
	case models.ModelAllInOne:
		return "AIO"
	case models.ModelMonitor:
		return "MON"
	case models.ModelDockingStation:
		return "DOCK"
	default:
		return "BAG"
	}
}

func randomMAC(rng *rand.Rand) string {
	parts := make([]string, 6)
	for i := range parts {
		parts[i] = fmt.Sprintf("%02x", rng.Intn(256))
	}
	return strings.Join(parts, ":")
}
