package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidVendor(t *testing.T) {
	for _, v := range Vendors {
		require.True(t, ValidVendor(v))
	}
	require.False(t, ValidVendor("mistral"))
	require.False(t, ValidVendor(""))
}

func TestPlausibleKey(t *testing.T) {
	t.Run("openai requires sk- prefix", func(t *testing.T) {
		require.True(t, PlausibleKey(VendorOpenAI, "sk-proj-0123456789abcdefghij"))
		require.False(t, PlausibleKey(VendorOpenAI, "pk-proj-0123456789abcdefghij"))
		require.False(t, PlausibleKey(VendorOpenAI, "sk-short"))
	})

	t.Run("other vendors require length only", func(t *testing.T) {
		for _, v := range []Vendor{VendorAnthropic, VendorGoogle, VendorAzure} {
			require.True(t, PlausibleKey(v, "abcdefghijklmnopqrstu"))
			require.False(t, PlausibleKey(v, "tooshort"))
		}
	})

	t.Run("unknown vendor never passes", func(t *testing.T) {
		require.False(t, PlausibleKey("mistral", "abcdefghijklmnopqrstu"))
	})
}

func TestMaskKey(t *testing.T) {
	require.Equal(t, "sk-p********", MaskKey("sk-proj-0123456789abcdefghij"))
	require.Equal(t, "ab********", MaskKey("ab"))
	require.Equal(t, "", MaskKey(""))
}
