package signing

const (
	// ClobDomainName CLOB 认证签名的 EIP712 域名
	ClobDomainName = "ClobAuthDomain"

	// ClobVersion EIP712 版本
	ClobVersion = "1"

	// AuthMessage 认证签名的固定消息
	AuthMessage = "This message attests that I control the given wallet"

	// ExchangeDomainName 订单签名的 EIP712 域名
	ExchangeDomainName = "Polymarket CTF Exchange"

	// CollateralDecimals USDC 精度（1e6）
	CollateralDecimals = 6
)
