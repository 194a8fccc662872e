package registry

// ABI fragments used by approvals and protocol handlers.
const (
	ERC20MinimalABI = `[
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	// Shared by ERC721 and ERC1155 collections.
	NFTApprovalABI = `[
		{"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"setApprovalForAll","type":"function","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
		{"name":"transferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
		{"name":"safeTransferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]}
	]`

	CryptoPunksMarketABI = `[
		{"name":"punkIndexToAddress","type":"function","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
		{"name":"punksOfferedForSale","type":"function","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"isForSale","type":"bool"},{"name":"punkIndex","type":"uint256"},{"name":"seller","type":"address"},{"name":"minValue","type":"uint256"},{"name":"onlySellTo","type":"address"}]},
		{"name":"offerPunkForSaleToAddress","type":"function","stateMutability":"nonpayable","inputs":[{"name":"punkIndex","type":"uint256"},{"name":"minSalePriceInWei","type":"uint256"},{"name":"toAddress","type":"address"}],"outputs":[]},
		{"name":"buyPunk","type":"function","stateMutability":"payable","inputs":[{"name":"punkIndex","type":"uint256"}],"outputs":[]},
		{"name":"acceptBidForPunk","type":"function","stateMutability":"nonpayable","inputs":[{"name":"punkIndex","type":"uint256"},{"name":"minPrice","type":"uint256"}],"outputs":[]}
	]`

	ExchangeV2ABI = `[
		{"name":"matchOrders","type":"function","stateMutability":"payable","inputs":[
			{"name":"orderLeft","type":"tuple","components":[
				{"name":"maker","type":"address"},
				{"name":"makeAsset","type":"tuple","components":[{"name":"assetType","type":"tuple","components":[{"name":"assetClass","type":"bytes4"},{"name":"data","type":"bytes"}]},{"name":"value","type":"uint256"}]},
				{"name":"taker","type":"address"},
				{"name":"takeAsset","type":"tuple","components":[{"name":"assetType","type":"tuple","components":[{"name":"assetClass","type":"bytes4"},{"name":"data","type":"bytes"}]},{"name":"value","type":"uint256"}]},
				{"name":"salt","type":"uint256"},
				{"name":"start","type":"uint256"},
				{"name":"end","type":"uint256"},
				{"name":"dataType","type":"bytes4"},
				{"name":"data","type":"bytes"}
			]},
			{"name":"signatureLeft","type":"bytes"},
			{"name":"orderRight","type":"tuple","components":[
				{"name":"maker","type":"address"},
				{"name":"makeAsset","type":"tuple","components":[{"name":"assetType","type":"tuple","components":[{"name":"assetClass","type":"bytes4"},{"name":"data","type":"bytes"}]},{"name":"value","type":"uint256"}]},
				{"name":"taker","type":"address"},
				{"name":"takeAsset","type":"tuple","components":[{"name":"assetType","type":"tuple","components":[{"name":"assetClass","type":"bytes4"},{"name":"data","type":"bytes"}]},{"name":"value","type":"uint256"}]},
				{"name":"salt","type":"uint256"},
				{"name":"start","type":"uint256"},
				{"name":"end","type":"uint256"},
				{"name":"dataType","type":"bytes4"},
				{"name":"data","type":"bytes"}
			]},
			{"name":"signatureRight","type":"bytes"}
		],"outputs":[]}
	]`

	ExchangeV1ABI = `[
		{"name":"exchange","type":"function","stateMutability":"payable","inputs":[
			{"name":"order","type":"tuple","components":[
				{"name":"key","type":"tuple","components":[
					{"name":"owner","type":"address"},
					{"name":"salt","type":"uint256"},
					{"name":"sellAsset","type":"tuple","components":[{"name":"token","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"assetType","type":"uint8"}]},
					{"name":"buyAsset","type":"tuple","components":[{"name":"token","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"assetType","type":"uint8"}]}
				]},
				{"name":"selling","type":"uint256"},
				{"name":"buying","type":"uint256"},
				{"name":"sellerFee","type":"uint256"}
			]},
			{"name":"sig","type":"tuple","components":[{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}]},
			{"name":"buyerFee","type":"uint256"},
			{"name":"buyerFeeSig","type":"tuple","components":[{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}]},
			{"name":"amount","type":"uint256"},
			{"name":"buyer","type":"address"}
		],"outputs":[]}
	]`

	WyvernExchangeABI = `[
		{"name":"atomicMatch_","type":"function","stateMutability":"payable","inputs":[
			{"name":"addrs","type":"address[14]"},
			{"name":"uints","type":"uint256[18]"},
			{"name":"feeMethodsSidesKindsHowToCalls","type":"uint8[8]"},
			{"name":"calldataBuy","type":"bytes"},
			{"name":"calldataSell","type":"bytes"},
			{"name":"replacementPatternBuy","type":"bytes"},
			{"name":"replacementPatternSell","type":"bytes"},
			{"name":"staticExtradataBuy","type":"bytes"},
			{"name":"staticExtradataSell","type":"bytes"},
			{"name":"vs","type":"uint8[2]"},
			{"name":"rssMetadata","type":"bytes32[5]"}
		],"outputs":[]}
	]`

	WyvernProxyRegistryABI = `[
		{"name":"proxies","type":"function","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"address"}]},
		{"name":"registerProxy","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`
)
