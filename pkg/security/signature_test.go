package security_test

import (
	"encoding/hex"
	"testing"

	"github.com/freshmarket/grocery-backend/pkg/security"
	"github.com/stretchr/testify/require"
)

func TestPaymentSignatureRoundTrip(t *testing.T) {
	payload := security.PaymentSignaturePayload("order_Abc123", "pay_Xyz789")
	require.Equal(t, "order_Abc123|pay_Xyz789", string(payload))

	sig := security.SignHMAC("key-secret", payload)
	require.True(t, security.VerifyHMAC("key-secret", payload, sig))
	require.False(t, security.VerifyHMAC("other-secret", payload, sig))
	require.False(t, security.VerifyHMAC("key-secret", security.PaymentSignaturePayload("order_Abc123", "pay_other"), sig))
}

func TestVerifyHMACRejectsEverySingleBitFlip(t *testing.T) {
	payload := security.PaymentSignaturePayload("order_1", "pay_1")
	sig := security.SignHMAC("secret", payload)
	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)

	for i := 0; i < len(raw)*8; i++ {
		mutated := append([]byte(nil), raw...)
		mutated[i/8] ^= 1 << (i % 8)
		require.Falsef(t, security.VerifyHMAC("secret", payload, hex.EncodeToString(mutated)), "bit %d flip accepted", i)
	}
}

func TestVerifyHMACRejectsMalformedInput(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	sig := security.SignHMAC("whsec", payload)

	require.False(t, security.VerifyHMAC("", payload, sig))
	require.False(t, security.VerifyHMAC("whsec", payload, ""))
	require.False(t, security.VerifyHMAC("whsec", payload, "zz-not-hex"))
	require.False(t, security.VerifyHMAC("whsec", payload, sig[:10]))
	require.True(t, security.VerifyHMAC("whsec", payload, " "+sig+" "))
}
