package domain

import (
	"fmt"
	"strings"
)

type JobCommand struct {
	Name string
}

type Platform string

const (
	PlatformAtopems      Platform = "Atopem's"
	PlatformBuswork      Platform = "Buswork"
	PlatformMercadoLibre Platform = "MercadoLibre"
	PlatformCatalog      Platform = "Catalog"
)

// JobSpec describes one entry of the fixed job catalogue.
type JobSpec struct {
	Command  JobCommand
	Platform Platform
	Label    string
}

var (
	CommandEcommerce1PriceUpdate = JobCommand{Name: "ecommerce-1-price-update"}
	CommandEcommerce1StockUpdate = JobCommand{Name: "ecommerce-1-stock-update"}
	CommandEcommerce2PriceUpdate = JobCommand{Name: "ecommerce-2-price-update"}
	CommandEcommerce2StockUpdate = JobCommand{Name: "ecommerce-2-stock-update"}
	CommandEcommerce3PriceUpdate = JobCommand{Name: "ecommerce-3-price-update"}
	CommandEcommerce3StockUpdate = JobCommand{Name: "ecommerce-3-stock-update"}
	CommandUpdateGecom           = JobCommand{Name: "updateGecom"}
	CommandUpdateMongo           = JobCommand{Name: "updateMongo"}
)

var catalogue = []JobSpec{
	{Command: CommandEcommerce2PriceUpdate, Platform: PlatformBuswork, Label: "Update prices"},
	{Command: CommandEcommerce2StockUpdate, Platform: PlatformBuswork, Label: "Update stock"},
	{Command: CommandEcommerce1PriceUpdate, Platform: PlatformAtopems, Label: "Update prices"},
	{Command: CommandEcommerce1StockUpdate, Platform: PlatformAtopems, Label: "Update stock"},
	{Command: CommandEcommerce3PriceUpdate, Platform: PlatformMercadoLibre, Label: "Update prices"},
	{Command: CommandEcommerce3StockUpdate, Platform: PlatformMercadoLibre, Label: "Update stock"},
	{Command: CommandUpdateGecom, Platform: PlatformCatalog, Label: "Update GECOM & Google API"},
	{Command: CommandUpdateMongo, Platform: PlatformCatalog, Label: "Update MongoDB"},
}

// Catalogue returns the job commands in menu order.
func Catalogue() []JobSpec {
	out := make([]JobSpec, len(catalogue))
	copy(out, catalogue)
	return out
}

func ParseJobCommand(raw string) (JobCommand, error) {
	name := strings.TrimSpace(raw)
	for _, spec := range catalogue {
		if spec.Command.Name == name {
			return spec.Command, nil
		}
	}

	return JobCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
}

func (c JobCommand) Valid() bool {
	_, err := ParseJobCommand(c.Name)
	return err == nil
}

func (c JobCommand) String() string {
	return c.Name
}
