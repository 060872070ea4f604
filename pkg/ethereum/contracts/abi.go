// Package contracts holds the ABIs of the contracts the wallet talks to and
// resolves method and event identifiers per contract address.
package contracts

// Faucet methods and events.
const (
	FnTokenContract    = "tokenContract"
	FnAmountAllowed    = "amountAllowed"
	FnRequestTokens    = "requestTokens"
	FnRequestTokensTo  = "requestTokensTo"
	FnReturnTokens     = "returnTokens"
	FnRequestedAddress = "requestedAddress"

	EventSendToken   = "SendToken"
	EventReturnToken = "ReturnToken"
)

// ERC-20 methods and events.
const (
	FnName      = "name"
	FnSymbol    = "symbol"
	FnDecimals  = "decimals"
	FnBalanceOf = "balanceOf"
	FnApprove   = "approve"
	FnAllowance = "allowance"

	EventTransfer = "Transfer"
)

// SBT methods.
const (
	FnMintPrice           = "mintPrice"
	FnMintWithPayment     = "mintWithPayment"
	FnTokenOfOwnerByIndex = "tokenOfOwnerByIndex"
	FnTokenURI            = "tokenURI"
	FnOwnerOf             = "ownerOf"
)

// FaucetABI is the faucet that can send to an explicit recipient. Older
// deployments lack requestTokensTo.
const FaucetABI = `[
	{"anonymous":false,"inputs":[{"indexed":true,"name":"Sender","type":"address"},{"indexed":true,"name":"Amount","type":"uint256"}],"name":"ReturnToken","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"Receiver","type":"address"},{"indexed":true,"name":"Amount","type":"uint256"}],"name":"SendToken","type":"event"},
	{"inputs":[],"name":"amountAllowed","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"requestTokens","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"recipient","type":"address"}],"name":"requestTokensTo","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"","type":"address"}],"name":"requestedAddress","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"returnTokens","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"tokenContract","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// ERC20ABI covers the token reads and the approval used to return tokens.
const ERC20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"owner","type":"address"},{"indexed":true,"name":"spender","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Approval","type":"event"}
]`

// SBTABI is the soul-bound token minted with a native payment.
const SBTABI = `[
	{"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"mintPrice","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"name":"tokenOfOwnerByIndex","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"uri","type":"string"}],"name":"mintWithPayment","outputs":[],"stateMutability":"payable","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
]`
