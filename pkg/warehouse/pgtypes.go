package warehouse

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// This covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 18:
		return "CHAR"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 26:
		return "OID"
	case 114:
		return "JSON"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 790:
		return "MONEY"
	case 829:
		return "MACADDR"
	case 869:
		return "INET"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1266:
		return "TIMETZ"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	// Array types
	case 1000:
		return "BOOL[]"
	case 1005:
		return "INT2[]"
	case 1007:
		return "INT4[]"
	case 1016:
		return "INT8[]"
	case 1009:
		return "TEXT[]"
	case 1015:
		return "VARCHAR[]"
	case 1021:
		return "FLOAT4[]"
	case 1022:
		return "FLOAT8[]"
	case 2951:
		return "UUID[]"
	case 3807:
		return "JSONB[]"
	default:
		return "UNKNOWN"
	}
}
