package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// factoryABIJSON covers the single factory event the indexer consumes.
const factoryABIJSON = `[
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"instance","type":"address"}],"name":"CreateInstance","type":"event"}
]`

// fixtureABIJSON covers the fixture lifecycle events plus the view accessors
// read at market creation. Accessors are listed here so call data can be
// packed and return data unpacked without generated bindings.
const fixtureABIJSON = `[
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"user","type":"address"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],"name":"EngageChallenge","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"user","type":"address"},{"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}],"name":"ExitEvent","type":"event"},
	{"anonymous":false,"inputs":[],"name":"EventCancelled","type":"event"},
	{"anonymous":false,"inputs":[],"name":"ResolveEvent","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":false,"internalType":"string","name":"ipfsHash","type":"string"}],"name":"MarketMetadataSet","type":"event"},
	{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"stakeToken","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"engagementDeadline","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"resolutionDeadline","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"creatorFee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"predictionCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"ipfsMetadataHash","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var (
	factoryABI = mustParseABI(factoryABIJSON)
	fixtureABI = mustParseABI(fixtureABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: parse ABI: " + err.Error())
	}
	return parsed
}
