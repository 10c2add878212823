package fixtures

import (
	_ "embed"
)

//go:embed registry/contract_registry.json
var ContractRegistry []byte

//go:embed config/config.yaml.template
var ConfigTemplate []byte
